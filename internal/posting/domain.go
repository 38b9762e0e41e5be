package posting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/shared"
)

// EventKind enumerates the postable business events.
type EventKind string

const (
	EventSale     EventKind = "sale"
	EventPurchase EventKind = "purchase"
	EventExpense  EventKind = "expense"
	EventPayment  EventKind = "payment"
)

// Valid reports whether the kind is one of the known values.
func (k EventKind) Valid() bool {
	switch k {
	case EventSale, EventPurchase, EventExpense, EventPayment:
		return true
	}
	return false
}

// PaymentDirection says which way money moved.
type PaymentDirection string

const (
	// PaymentIn is money received from the party. Debits the party.
	PaymentIn PaymentDirection = "in"
	// PaymentOut is money paid to the party. Credits the party.
	PaymentOut PaymentDirection = "out"
)

// ExpenseCategory buckets expenses for reporting.
type ExpenseCategory string

const (
	ExpenseFeed        ExpenseCategory = "feed"
	ExpenseMedicine    ExpenseCategory = "medicine"
	ExpenseLabor       ExpenseCategory = "labor"
	ExpenseUtilities   ExpenseCategory = "utilities"
	ExpenseTransport   ExpenseCategory = "transport"
	ExpenseMaintenance ExpenseCategory = "maintenance"
	ExpenseOther       ExpenseCategory = "other"
)

// Valid reports whether the category is one of the fixed set.
func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseFeed, ExpenseMedicine, ExpenseLabor, ExpenseUtilities,
		ExpenseTransport, ExpenseMaintenance, ExpenseOther:
		return true
	}
	return false
}

// ErrUnknownParty indicates the event references a party that does not exist.
var ErrUnknownParty = fmt.Errorf("posting: unknown party: %w", shared.ErrNotFound)

// ErrUnknownItem indicates the event references a stock item that does not
// exist.
var ErrUnknownItem = fmt.Errorf("posting: unknown item: %w", shared.ErrNotFound)

// ErrAlreadyVoided indicates the event was voided before.
var ErrAlreadyVoided = fmt.Errorf("posting: event already voided: %w", shared.ErrInvariant)

// ErrEventNotFound indicates no event row matches the id.
var ErrEventNotFound = fmt.Errorf("posting: event not found: %w", shared.ErrNotFound)

// SaleInput describes a sale of goods to a party.
type SaleInput struct {
	EventID    uuid.UUID
	PartyID    int64
	ItemID     int64
	Quantity   decimal.Decimal
	Rate       decimal.Decimal
	Currency   ledger.Currency
	OnAccount  bool
	OccurredAt time.Time
	Note       string
}

// PurchaseInput describes a purchase from a party. Posting one consumes
// stock: the quantity is issued out of the referenced item.
type PurchaseInput struct {
	EventID    uuid.UUID
	PartyID    int64
	ItemID     int64
	Quantity   decimal.Decimal
	Rate       decimal.Decimal
	Currency   ledger.Currency
	Backorder  bool
	OccurredAt time.Time
	Note       string
}

// ExpenseInput describes a cash outflow. PartyID of zero records the expense
// with no ledger effect.
type ExpenseInput struct {
	EventID    uuid.UUID
	PartyID    int64
	FarmID     int64
	Category   ExpenseCategory
	Amount     decimal.Decimal
	Currency   ledger.Currency
	OccurredAt time.Time
	Note       string
}

// PaymentInput describes money moving between the business and a party.
type PaymentInput struct {
	EventID    uuid.UUID
	PartyID    int64
	Direction  PaymentDirection
	Amount     decimal.Decimal
	Currency   ledger.Currency
	OccurredAt time.Time
	Note       string
}

// Receipt identifies everything a posted event produced, for traceability.
type Receipt struct {
	EventID         uuid.UUID
	Kind            EventKind
	LedgerEntryIDs  []int64
	StockMovementID int64
	PostedAt        time.Time
}

// SaleRecord is the persisted form of a posted sale.
type SaleRecord struct {
	EventID       uuid.UUID
	PartyID       int64
	ItemID        int64
	Quantity      decimal.Decimal
	Rate          decimal.Decimal
	Total         decimal.Decimal
	Currency      ledger.Currency
	OnAccount     bool
	EntryID       int64
	OffsetEntryID int64
	MovementID    int64
	OccurredAt    time.Time
	Note          string
	VoidedAt      *time.Time
	ReversalID    *uuid.UUID
	CreatedAt     time.Time
}

// PurchaseRecord is the persisted form of a posted purchase.
type PurchaseRecord struct {
	EventID    uuid.UUID
	PartyID    int64
	ItemID     int64
	Quantity   decimal.Decimal
	Rate       decimal.Decimal
	Total      decimal.Decimal
	Currency   ledger.Currency
	EntryID    int64
	MovementID int64
	OccurredAt time.Time
	Note       string
	VoidedAt   *time.Time
	ReversalID *uuid.UUID
	CreatedAt  time.Time
}

// ExpenseRecord is the persisted form of a posted expense. EntryID is zero
// for expenses with no party.
type ExpenseRecord struct {
	EventID    uuid.UUID
	PartyID    int64
	FarmID     int64
	Category   ExpenseCategory
	Amount     decimal.Decimal
	Currency   ledger.Currency
	EntryID    int64
	OccurredAt time.Time
	Note       string
	VoidedAt   *time.Time
	ReversalID *uuid.UUID
	CreatedAt  time.Time
}

// PaymentRecord is the persisted form of a posted payment.
type PaymentRecord struct {
	EventID    uuid.UUID
	PartyID    int64
	Direction  PaymentDirection
	Amount     decimal.Decimal
	Currency   ledger.Currency
	EntryID    int64
	OccurredAt time.Time
	Note       string
	VoidedAt   *time.Time
	ReversalID *uuid.UUID
	CreatedAt  time.Time
}
