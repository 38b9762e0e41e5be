package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// Currency enumerates the two book currencies. Balances are kept per currency
// and are never netted against each other.
type Currency string

const (
	CurrencyAFG Currency = "AFG"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyAFG || c == CurrencyUSD
}

// ReferenceKind names the originating transaction of an entry.
type ReferenceKind string

const (
	RefSale       ReferenceKind = "sale"
	RefPurchase   ReferenceKind = "purchase"
	RefExpense    ReferenceKind = "expense"
	RefPayment    ReferenceKind = "payment"
	RefAdjustment ReferenceKind = "adjustment"
)

// Valid reports whether k is a known reference kind.
func (k ReferenceKind) Valid() bool {
	switch k {
	case RefSale, RefPurchase, RefExpense, RefPayment, RefAdjustment:
		return true
	}
	return false
}

var (
	// ErrInvalidMovement rejects entries that debit and credit the same
	// currency, carry a negative amount, or move nothing at all.
	ErrInvalidMovement = fmt.Errorf("ledger: invalid movement: %w", shared.ErrInvariant)
	// ErrPartyNotFound rejects entries against an unknown party.
	ErrPartyNotFound = fmt.Errorf("ledger: party: %w", shared.ErrNotFound)
	// ErrEntryNotFound indicates the requested entry does not exist.
	ErrEntryNotFound = fmt.Errorf("ledger: entry: %w", shared.ErrNotFound)
)

// Movements carries the per-currency amounts of one entry. For each currency
// at most one of debit and credit may be non-zero.
type Movements struct {
	DebitAFG  decimal.Decimal
	CreditAFG decimal.Decimal
	DebitUSD  decimal.Decimal
	CreditUSD decimal.Decimal
}

// Validate enforces the entry invariants: non-negative amounts, no debit and
// credit in the same currency, and at least one non-zero movement.
func (m Movements) Validate() error {
	for _, amt := range []decimal.Decimal{m.DebitAFG, m.CreditAFG, m.DebitUSD, m.CreditUSD} {
		if amt.IsNegative() {
			return fmt.Errorf("%w: negative amount", ErrInvalidMovement)
		}
	}
	if m.DebitAFG.IsPositive() && m.CreditAFG.IsPositive() {
		return fmt.Errorf("%w: debit and credit in AFG", ErrInvalidMovement)
	}
	if m.DebitUSD.IsPositive() && m.CreditUSD.IsPositive() {
		return fmt.Errorf("%w: debit and credit in USD", ErrInvalidMovement)
	}
	if m.IsZero() {
		return fmt.Errorf("%w: no currency movement", ErrInvalidMovement)
	}
	return nil
}

// IsZero reports whether no currency moves.
func (m Movements) IsZero() bool {
	return m.DebitAFG.IsZero() && m.CreditAFG.IsZero() && m.DebitUSD.IsZero() && m.CreditUSD.IsZero()
}

// Reversed swaps debit and credit in both currencies. Posting the result
// cancels the original movements.
func (m Movements) Reversed() Movements {
	return Movements{
		DebitAFG:  m.CreditAFG,
		CreditAFG: m.DebitAFG,
		DebitUSD:  m.CreditUSD,
		CreditUSD: m.DebitUSD,
	}
}

// Debit builds a single-currency debit movement.
func Debit(c Currency, amount decimal.Decimal) Movements {
	if c == CurrencyUSD {
		return Movements{DebitUSD: amount}
	}
	return Movements{DebitAFG: amount}
}

// Credit builds a single-currency credit movement.
func Credit(c Currency, amount decimal.Decimal) Movements {
	if c == CurrencyUSD {
		return Movements{CreditUSD: amount}
	}
	return Movements{CreditAFG: amount}
}

// Merge combines movements of two single-currency builders. The result still
// has to pass Validate.
func (m Movements) Merge(other Movements) Movements {
	return Movements{
		DebitAFG:  m.DebitAFG.Add(other.DebitAFG),
		CreditAFG: m.CreditAFG.Add(other.CreditAFG),
		DebitUSD:  m.DebitUSD.Add(other.DebitUSD),
		CreditUSD: m.CreditUSD.Add(other.CreditUSD),
	}
}

// Entry is an immutable ledger record. Corrections are posted as new
// reversing entries, never by mutating history.
type Entry struct {
	ID            int64
	PartyID       int64
	PostedAt      time.Time
	Movements     Movements
	ReferenceKind ReferenceKind
	ReferenceID   string
	Description   string
	CreatedAt     time.Time
}

// PostEntryInput describes a new entry.
type PostEntryInput struct {
	PartyID       int64
	PostedAt      time.Time
	Movements     Movements
	ReferenceKind ReferenceKind
	ReferenceID   string
	Description   string
}

// CurrencyTotals aggregates one currency over a statement range.
type CurrencyTotals struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balance     decimal.Decimal
}

// Statement summarises a party's ledger activity over a date range. A party
// with no entries in range yields zeroed fields, not an error.
type Statement struct {
	PartyID     int64
	From        time.Time
	To          time.Time
	AFG         CurrencyTotals
	USD         CurrencyTotals
	EntryCount  int64
	LastEntryAt *time.Time
}

// BalanceDrift reports a snapshot that diverged from entry replay. Emitted by
// the integrity job; a non-empty result means the snapshot cache is corrupt.
type BalanceDrift struct {
	PartyID  int64
	Currency Currency
	Snapshot decimal.Decimal
	Replayed decimal.Decimal
}

// ListEntriesFilter narrows entry listings.
type ListEntriesFilter struct {
	PartyID int64
	From    time.Time
	To      time.Time
	Limit   int
}
