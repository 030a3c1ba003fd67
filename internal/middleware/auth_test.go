package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronin/ledger-service/internal/config"
	"github.com/nvoronin/ledger-service/internal/models"
)

func signToken(t *testing.T, secret, subject, role string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Role: role,
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthHandler(cfg *config.Config) (http.Handler, *models.Principal) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	var seen models.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if ok {
			seen = principal
		}
		w.WriteHeader(http.StatusOK)
	})
	return Authenticate(cfg, log)(next), &seen
}

func TestAuthenticate(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler, seen := newAuthHandler(cfg)

	token := signToken(t, "test-secret", "user-42", models.RoleUser, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", seen.ID)
	assert.Equal(t, models.RoleUser, seen.Role)
}

func TestAuthenticateRejects(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler, _ := newAuthHandler(cfg)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "user-42", models.RoleUser, time.Hour)},
		{"expired token", "Bearer " + signToken(t, "test-secret", "user-42", models.RoleUser, -time.Hour)},
		{"empty subject", "Bearer " + signToken(t, "test-secret", "", models.RoleUser, time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(models.RoleSystem)(next)

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/system/initial-funds", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithPrincipal(req.Context(), models.Principal{ID: "sys", Role: models.RoleSystem})))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(WithPrincipal(req.Context(), models.Principal{ID: "u", Role: models.RoleUser})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// No principal at all.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions/system/initial-funds", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
