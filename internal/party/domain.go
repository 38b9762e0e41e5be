package party

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// ErrNotFound indicates the party does not exist or was soft deleted.
var ErrNotFound = fmt.Errorf("party: not found: %w", shared.ErrNotFound)

// Party is an external counterparty the business trades with: a customer,
// supplier, laborer or lender. Balances live in the ledger, not here.
type Party struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// CreateInput carries the fields for a new party.
type CreateInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"omitempty,max=30"`
	Address string `json:"address" validate:"omitempty,max=240"`
	Notes   string `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateInput updates a party's contact fields.
type UpdateInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"omitempty,max=30"`
	Address string `json:"address" validate:"omitempty,max=240"`
	Notes   string `json:"notes" validate:"omitempty,max=1000"`
}

// ListFilter filters the party list.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

// Detail is a party together with its current ledger balances.
type Detail struct {
	Party      Party
	BalanceAFG decimal.Decimal
	BalanceUSD decimal.Decimal
}
