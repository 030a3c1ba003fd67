package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nvoronin/ledger-service/internal/middleware"
	"github.com/nvoronin/ledger-service/internal/models"
)

func principalFromRequest(r *http.Request) (models.Principal, bool) {
	return middleware.PrincipalFromContext(r.Context())
}

// CreateAccount handles account creation for the authenticated user
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "not authenticated"})
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), principal)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// GetAccount returns an account visible to the caller
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "not authenticated"})
		return
	}

	accountID := mux.Vars(r)["accountId"]
	if _, err := uuid.Parse(accountID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Message: "account id must be a valid UUID"})
		return
	}

	account, err := h.svc.Account(r.Context(), accountID, principal)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}
