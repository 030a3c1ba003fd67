package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nvoronin/ledger-service/internal/config"
	"github.com/nvoronin/ledger-service/internal/middleware"
	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/repository"
)

// Service handles registration, authentication and account management. The
// transaction engine lives separately in Engine.
type Service struct {
	store  repository.Store
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(store repository.Store, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, log: log, config: cfg}
}

// Register creates a new user with a hashed password and their first
// account, atomically.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, *models.Account, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
	}
	account := &models.Account{
		ID:      uuid.NewString(),
		OwnerID: user.ID,
	}

	if err := s.store.CreateUserWithAccount(ctx, user, account); err != nil {
		return nil, nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, account, nil
}

// Login authenticates a user and returns a JWT token carrying the
// principal's id and role.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return "", models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.TokenTTL)),
		},
		Role: user.Role,
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// EnsureSystemUser seeds the system principal on startup. It is a no-op when
// the user already exists or no password is configured.
func (s *Service) EnsureSystemUser(ctx context.Context) error {
	if s.config.SystemUserPassword == "" {
		s.log.Warn("SYSTEM_USER_PASSWORD not set, fund origination is unavailable")
		return nil
	}

	_, err := s.store.UserByEmail(ctx, s.config.SystemUserEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("failed to look up system user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.config.SystemUserPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash system user password: %w", err)
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         s.config.SystemUserName,
		Email:        s.config.SystemUserEmail,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleSystem,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create system user: %w", err)
	}

	s.log.Infof("System user created: %s", user.Email)
	return nil
}

// CreateAccount creates an additional account for the authenticated user.
func (s *Service) CreateAccount(ctx context.Context, principal models.Principal) (*models.Account, error) {
	if principal.Role != models.RoleUser {
		return nil, fmt.Errorf("%w: only user principals own accounts", models.ErrForbidden)
	}

	account := &models.Account{
		ID:      uuid.NewString(),
		OwnerID: principal.ID,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Infof("Account created for user %s: %s", principal.ID, account.ID)
	return account, nil
}

// Account fetches an account visible to the principal: its owner, or the
// system principal.
func (s *Service) Account(ctx context.Context, id string, principal models.Principal) (*models.Account, error) {
	account, err := s.store.AccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if principal.Role != models.RoleSystem && account.OwnerID != principal.ID {
		return nil, fmt.Errorf("%w: account %s does not belong to the caller", models.ErrForbidden, id)
	}
	return account, nil
}
