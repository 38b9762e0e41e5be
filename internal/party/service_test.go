package party

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/shared"
)

type memoryRepo struct {
	parties map[int64]Party
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{parties: map[int64]Party{}}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Party, error) {
	p, ok := r.parties[id]
	if !ok || p.DeletedAt != nil {
		return Party{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	var out []Party
	for _, p := range r.parties {
		if p.DeletedAt == nil {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, input CreateInput) (Party, error) {
	r.nextID++
	p := Party{ID: r.nextID, Name: input.Name, Phone: input.Phone, Address: input.Address, Notes: input.Notes}
	r.parties[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, input UpdateInput) (Party, error) {
	p, ok := r.parties[id]
	if !ok || p.DeletedAt != nil {
		return Party{}, ErrNotFound
	}
	p.Name = input.Name
	p.Phone = input.Phone
	p.Address = input.Address
	p.Notes = input.Notes
	r.parties[id] = p
	return p, nil
}

func (r *memoryRepo) SoftDelete(ctx context.Context, id int64) error {
	p, ok := r.parties[id]
	if !ok || p.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	r.parties[id] = p
	return nil
}

type fakeLedger struct {
	entries  map[int64]bool
	balances map[string]decimal.Decimal
}

func (f *fakeLedger) HasEntries(ctx context.Context, partyID int64) (bool, error) {
	return f.entries[partyID], nil
}

func (f *fakeLedger) Balance(ctx context.Context, partyID int64, currency ledger.Currency, asOf time.Time) (decimal.Decimal, error) {
	return f.balances[string(currency)], nil
}

func TestCreateValidatesName(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeLedger{}, nil)
	_, err := svc.Create(context.Background(), CreateInput{Name: ""})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRefusedWithLedgerHistory(t *testing.T) {
	repo := newMemoryRepo()
	led := &fakeLedger{entries: map[int64]bool{}}
	svc := NewService(repo, led, nil)
	ctx := context.Background()

	withHistory, err := svc.Create(ctx, CreateInput{Name: "Ahmad Feed Supply"})
	require.NoError(t, err)
	clean, err := svc.Create(ctx, CreateInput{Name: "One-off buyer"})
	require.NoError(t, err)
	led.entries[withHistory.ID] = true

	err = svc.Delete(ctx, withHistory.ID)
	require.ErrorIs(t, err, shared.ErrInvariant)
	_, err = svc.Get(ctx, withHistory.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, clean.ID))
	_, err = svc.Get(ctx, clean.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDetailIncludesBalances(t *testing.T) {
	repo := newMemoryRepo()
	led := &fakeLedger{balances: map[string]decimal.Decimal{
		"AFG": decimal.NewFromInt(3000),
		"USD": decimal.NewFromInt(-40),
	}}
	svc := NewService(repo, led, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Karim Traders", Phone: "0700000000"})
	require.NoError(t, err)

	detail, err := svc.Detail(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, detail.BalanceAFG.Equal(decimal.NewFromInt(3000)))
	require.True(t, detail.BalanceUSD.Equal(decimal.NewFromInt(-40)))
}
