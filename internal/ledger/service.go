package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains party running balances and produces statements. All
// mutation goes through PostEntry; committed entries are never edited.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// PostEntry validates and durably appends one entry in its own transaction.
func (s *Service) PostEntry(ctx context.Context, input PostEntryInput) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := s.PostEntryTx(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, entry)
	return entry, nil
}

// PostEntryTx validates and appends one entry on the caller's transaction.
// The posting coordinator uses this to keep the ledger write and the stock
// write in a single atomic unit of work.
func (s *Service) PostEntryTx(ctx context.Context, tx TxRepository, input PostEntryInput) (Entry, error) {
	if input.PartyID == 0 {
		return Entry{}, shared.Validationf("ledger: party id required")
	}
	if !input.ReferenceKind.Valid() {
		return Entry{}, shared.Validationf("ledger: unknown reference kind %q", input.ReferenceKind)
	}
	if err := input.Movements.Validate(); err != nil {
		return Entry{}, err
	}
	if input.PostedAt.IsZero() {
		input.PostedAt = time.Now().UTC()
	} else {
		input.PostedAt = input.PostedAt.UTC()
	}

	exists, err := tx.PartyExists(ctx, input.PartyID)
	if err != nil {
		return Entry{}, err
	}
	if !exists {
		return Entry{}, fmt.Errorf("%w: id %d", ErrPartyNotFound, input.PartyID)
	}

	id, err := tx.InsertEntry(ctx, input)
	if err != nil {
		return Entry{}, err
	}

	// Maintain the per-currency snapshot in the same transaction so readers
	// never observe an entry without its balance effect.
	afgDelta := input.Movements.CreditAFG.Sub(input.Movements.DebitAFG)
	if !afgDelta.IsZero() {
		if err := tx.ApplyBalanceDelta(ctx, input.PartyID, CurrencyAFG, afgDelta); err != nil {
			return Entry{}, err
		}
	}
	usdDelta := input.Movements.CreditUSD.Sub(input.Movements.DebitUSD)
	if !usdDelta.IsZero() {
		if err := tx.ApplyBalanceDelta(ctx, input.PartyID, CurrencyUSD, usdDelta); err != nil {
			return Entry{}, err
		}
	}

	return Entry{
		ID:            id,
		PartyID:       input.PartyID,
		PostedAt:      input.PostedAt,
		Movements:     input.Movements,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
		Description:   input.Description,
		CreatedAt:     input.PostedAt,
	}, nil
}

// ReverseEntry posts a new entry with swapped debit and credit referencing
// the original entry. History is never mutated.
func (s *Service) ReverseEntry(ctx context.Context, entryID int64, description string) (Entry, error) {
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if description == "" {
			description = "reversal of entry " + strconv.FormatInt(original.ID, 10)
		}
		r, err := s.PostEntryTx(ctx, tx, PostEntryInput{
			PartyID:       original.PartyID,
			Movements:     original.Movements.Reversed(),
			ReferenceKind: RefAdjustment,
			ReferenceID:   strconv.FormatInt(original.ID, 10),
			Description:   description,
		})
		if err != nil {
			return err
		}
		reversal = r
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, reversal)
	return reversal, nil
}

// Balance returns the signed balance of a party in one currency as of the
// given time. The result replays entries so it is consistent with history by
// construction; the snapshot table is only a cache for dashboards.
func (s *Service) Balance(ctx context.Context, partyID int64, currency Currency, asOf time.Time) (decimal.Decimal, error) {
	if !currency.Valid() {
		return decimal.Zero, shared.Validationf("ledger: unknown currency %q", currency)
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	return s.repo.ReplayBalance(ctx, partyID, currency, asOf.UTC())
}

// SnapshotBalance reads the maintained running total without replay.
func (s *Service) SnapshotBalance(ctx context.Context, partyID int64, currency Currency) (decimal.Decimal, error) {
	if !currency.Valid() {
		return decimal.Zero, shared.Validationf("ledger: unknown currency %q", currency)
	}
	return s.repo.SnapshotBalance(ctx, partyID, currency)
}

// Statement aggregates a party's activity over a date range per currency.
func (s *Service) Statement(ctx context.Context, partyID int64, from, to time.Time) (Statement, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if !from.IsZero() && from.After(to) {
		return Statement{}, shared.Validationf("ledger: statement range start after end")
	}
	return s.repo.Statement(ctx, partyID, from.UTC(), to.UTC())
}

// GetEntry loads one entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries lists a party's entries in posting order.
func (s *Service) ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error) {
	if filter.PartyID == 0 {
		return nil, shared.Validationf("ledger: party id required")
	}
	return s.repo.ListEntries(ctx, filter)
}

// HasEntries reports whether any entry references the party. The parties
// service refuses deletion while this holds.
func (s *Service) HasEntries(ctx context.Context, partyID int64) (bool, error) {
	return s.repo.HasEntries(ctx, partyID)
}

// CheckSnapshotIntegrity compares every balance snapshot against full entry
// replay and returns the rows that diverged.
func (s *Service) CheckSnapshotIntegrity(ctx context.Context) ([]BalanceDrift, error) {
	return s.repo.ListSnapshotDrift(ctx)
}

func (s *Service) recordAudit(ctx context.Context, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   "ledger:post",
		Entity:   "ledger_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta: map[string]any{
			"party_id":       entry.PartyID,
			"reference_kind": string(entry.ReferenceKind),
			"reference_id":   entry.ReferenceID,
		},
	})
}
