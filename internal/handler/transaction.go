package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/service"
)

// Amounts are integer minor units throughout the API.
type transferRequest struct {
	FromAccount    string `json:"fromAccount"`
	ToAccount      string `json:"toAccount"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type initialFundsRequest struct {
	ToAccount      string `json:"toAccount"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// CreateTransaction handles a user-initiated transfer
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "not authenticated"})
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if msg := checkTransactionShape(req.ToAccount, req.Amount, req.IdempotencyKey); msg != "" {
		writeValidationError(w, msg)
		return
	}
	if _, err := uuid.Parse(req.FromAccount); err != nil {
		writeValidationError(w, "fromAccount must be a valid ID")
		return
	}

	txn, err := h.engine.Transfer(r.Context(), service.TransferInput{
		FromAccount:    req.FromAccount,
		ToAccount:      req.ToAccount,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	}, principal)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// CreateInitialFunds handles a system-originated initial funds credit
func (h *Handler) CreateInitialFunds(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Status: "error", Message: "not authenticated"})
		return
	}

	var req initialFundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if msg := checkTransactionShape(req.ToAccount, req.Amount, req.IdempotencyKey); msg != "" {
		writeValidationError(w, msg)
		return
	}

	txn, err := h.engine.Originate(r.Context(), service.OriginateInput{
		ToAccount:      req.ToAccount,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	}, principal)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

func checkTransactionShape(toAccount string, amount int64, idempotencyKey string) string {
	if _, err := uuid.Parse(toAccount); err != nil {
		return "toAccount must be a valid ID"
	}
	if amount <= 0 {
		return "amount must be a positive number"
	}
	if idempotencyKey == "" {
		return "idempotencyKey is required"
	}
	if len(idempotencyKey) > models.MaxIdempotencyKeyLen {
		return "idempotencyKey must not exceed 100 characters"
	}
	return ""
}
