package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// MovementKind names the business event a stock movement originated from.
type MovementKind string

const (
	MovementSale       MovementKind = "sale"
	MovementPurchase   MovementKind = "purchase"
	MovementFeedIssue  MovementKind = "feed_issue"
	MovementAdjustment MovementKind = "adjustment"
)

// Valid reports whether the kind is one of the known values.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementSale, MovementPurchase, MovementFeedIssue, MovementAdjustment:
		return true
	}
	return false
}

// ErrInsufficientStock rejects a movement that would drive an item's on-hand
// quantity below zero without the backorder override.
var ErrInsufficientStock = fmt.Errorf("inventory: insufficient stock: %w", shared.ErrInvariant)

// ErrItemNotFound indicates the referenced stock item does not exist or was
// soft deleted.
var ErrItemNotFound = fmt.Errorf("inventory: item not found: %w", shared.ErrNotFound)

// ErrZeroDelta rejects a movement with no quantity effect.
var ErrZeroDelta = fmt.Errorf("inventory: movement delta must be non-zero: %w", shared.ErrValidation)

// StockItem is a trackable material such as a feed ingredient or packaging.
// QuantityOnHand always equals the sum of the item's movement deltas.
type StockItem struct {
	ID               int64
	Name             string
	Unit             string
	QuantityOnHand   decimal.Decimal
	ReorderThreshold decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// LowStock reports whether the item is at or below its reorder threshold.
func (i StockItem) LowStock() bool {
	return i.QuantityOnHand.LessThanOrEqual(i.ReorderThreshold)
}

// StockMovement is an immutable signed quantity change to one item.
type StockMovement struct {
	ID            int64
	ItemID        int64
	Delta         decimal.Decimal
	ReferenceKind MovementKind
	ReferenceID   string
	Note          string
	OccurredAt    time.Time
	CreatedAt     time.Time
}

// ApplyMovementInput describes one quantity change to apply.
type ApplyMovementInput struct {
	ItemID        int64
	Delta         decimal.Decimal
	ReferenceKind MovementKind
	ReferenceID   string
	Note          string
	OccurredAt    time.Time

	// Backorder permits the movement to drive quantity below zero. Used for
	// corrective adjustments only.
	Backorder bool
}

// CreateItemInput carries the fields for a new stock item.
type CreateItemInput struct {
	Name             string `validate:"required,max=120"`
	Unit             string `validate:"required,max=20"`
	ReorderThreshold string `validate:"omitempty"`
	OpeningQuantity  string `validate:"omitempty"`
}

// UpdateItemInput updates the non-quantity fields of an item. Quantity only
// changes through movements.
type UpdateItemInput struct {
	Name             string `validate:"required,max=120"`
	Unit             string `validate:"required,max=20"`
	ReorderThreshold string `validate:"omitempty"`
}

// ListMovementsFilter filters an item's movement history.
type ListMovementsFilter struct {
	ItemID int64
	From   time.Time
	To     time.Time
	Limit  int
}

// QuantityDrift is one stock item whose on-hand quantity disagrees with the
// sum of its movement deltas.
type QuantityDrift struct {
	ItemID   int64
	Name     string
	OnHand   decimal.Decimal
	Replayed decimal.Decimal
}
