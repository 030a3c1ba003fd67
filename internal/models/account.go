package models

import "time"

// Account holds a balance in integer minor units. OwnerID is empty for
// accounts not bound to a user. Version increases on every balance change.
type Account struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
