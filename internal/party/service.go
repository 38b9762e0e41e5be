package party

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/shared"
)

// LedgerPort is the slice of the ledger service the party service needs.
type LedgerPort interface {
	HasEntries(ctx context.Context, partyID int64) (bool, error)
	Balance(ctx context.Context, partyID int64, currency ledger.Currency, asOf time.Time) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the party register. Deleting a party with ledger history is
// refused so balances always resolve to a live counterparty.
type Service struct {
	repo   Repository
	ledger LedgerPort
	audit  AuditPort
}

// NewService builds Service.
func NewService(repo Repository, ledgerPort LedgerPort, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort, audit: audit}
}

// Create registers a new party.
func (s *Service) Create(ctx context.Context, input CreateInput) (Party, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Party{}, err
	}
	p, err := s.repo.Create(ctx, input)
	if err != nil {
		return Party{}, err
	}
	s.recordAudit(ctx, "party:create", p.ID)
	return p, nil
}

// Update changes a party's contact fields.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Party, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Party{}, err
	}
	p, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return Party{}, err
	}
	s.recordAudit(ctx, "party:update", p.ID)
	return p, nil
}

// Delete soft-deletes a party. Refused while any ledger entry references it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	has, err := s.ledger.HasEntries(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return shared.Invariantf("party: %d has ledger history, post reversing entries instead", id)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "party:delete", id)
	return nil
}

// Get loads one live party.
func (s *Service) Get(ctx context.Context, id int64) (Party, error) {
	return s.repo.Get(ctx, id)
}

// List pages through live parties.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	return s.repo.List(ctx, filter)
}

// Detail returns a party with its current AFG and USD balances.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	now := time.Now().UTC()
	afg, err := s.ledger.Balance(ctx, id, ledger.CurrencyAFG, now)
	if err != nil {
		return Detail{}, err
	}
	usd, err := s.ledger.Balance(ctx, id, ledger.CurrencyUSD, now)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Party: p, BalanceAFG: afg, BalanceUSD: usd}, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "party",
		EntityID: strconv.FormatInt(id, 10),
	})
}
