package handler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nvoronin/ledger-service/internal/models"
	"github.com/nvoronin/ledger-service/internal/service"
)

// AuthService is the slice of the service layer the handlers need for
// registration, login and account access.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*models.User, *models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	CreateAccount(ctx context.Context, principal models.Principal) (*models.Account, error)
	Account(ctx context.Context, id string, principal models.Principal) (*models.Account, error)
}

// TransactionEngine is the transaction core as seen from the web layer.
type TransactionEngine interface {
	Transfer(ctx context.Context, in service.TransferInput, principal models.Principal) (*models.Transaction, error)
	Originate(ctx context.Context, in service.OriginateInput, principal models.Principal) (*models.Transaction, error)
}

type Handler struct {
	svc    AuthService
	engine TransactionEngine
	log    *logrus.Logger
}

func NewHandler(svc AuthService, engine TransactionEngine, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, engine: engine, log: log}
}
