package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nvoronin/ledger-service/internal/models"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Status: "error", Message: message})
}

// writeError maps the closed set of domain failures to status codes.
// Anything outside the set is an internal fault and is not leaked.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	message := err.Error()

	switch {
	case errors.Is(err, models.ErrInvalidOperation), errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrIdempotencyConflict), errors.Is(err, models.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrTransient):
		status = http.StatusServiceUnavailable
	default:
		h.log.Errorf("Unhandled error: %v", err)
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}
