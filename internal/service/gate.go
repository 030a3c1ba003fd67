package service

import (
	"fmt"

	"github.com/nvoronin/ledger-service/internal/models"
)

// Gate classifies the calling principal and decides which engine entry
// points it may use. It is a pure capability check, evaluated before the
// engine touches any state.
type Gate struct{}

// AuthorizeTransfer allows a user principal to move funds out of an account
// it owns. The system principal has no accounts and cannot transfer.
func (Gate) AuthorizeTransfer(principal models.Principal, from *models.Account) error {
	if principal.Role != models.RoleUser {
		return fmt.Errorf("%w: only user principals may transfer", models.ErrForbidden)
	}
	if from.OwnerID == "" || from.OwnerID != principal.ID {
		return fmt.Errorf("%w: account %s does not belong to the caller", models.ErrForbidden, from.ID)
	}
	return nil
}

// AuthorizeOriginate allows only the system principal to create funds.
// Origination is the single path by which money enters the ledger, so this
// check is a correctness property rather than a permission nicety.
func (Gate) AuthorizeOriginate(principal models.Principal) error {
	if principal.Role != models.RoleSystem {
		return fmt.Errorf("%w: only the system principal may originate funds", models.ErrForbidden)
	}
	return nil
}
