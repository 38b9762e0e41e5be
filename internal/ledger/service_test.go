package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	parties   map[int64]bool
	entries   []Entry
	snapshots map[string]decimal.Decimal
	nextID    int64
}

func newMemoryRepo(partyIDs ...int64) *memoryRepo {
	r := &memoryRepo{parties: map[int64]bool{}, snapshots: map[string]decimal.Decimal{}}
	for _, id := range partyIDs {
		r.parties[id] = true
	}
	return r
}

func snapKey(partyID int64, c Currency) string {
	return fmt.Sprintf("%d:%s", partyID, c)
}

type memoryTx struct {
	repo      *memoryRepo
	entries   []Entry
	snapshots map[string]decimal.Decimal
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, snapshots: map[string]decimal.Decimal{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.entries = append(r.entries, tx.entries...)
	for k, v := range tx.snapshots {
		r.snapshots[k] = r.snapshots[k].Add(v)
	}
	return nil
}

func (tx *memoryTx) PartyExists(ctx context.Context, partyID int64) (bool, error) {
	return tx.repo.parties[partyID], nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, input PostEntryInput) (int64, error) {
	tx.repo.nextID++
	tx.entries = append(tx.entries, Entry{
		ID:            tx.repo.nextID,
		PartyID:       input.PartyID,
		PostedAt:      input.PostedAt,
		Movements:     input.Movements,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
		Description:   input.Description,
	})
	return tx.repo.nextID, nil
}

func (tx *memoryTx) ApplyBalanceDelta(ctx context.Context, partyID int64, currency Currency, delta decimal.Decimal) error {
	key := snapKey(partyID, currency)
	tx.snapshots[key] = tx.snapshots[key].Add(delta)
	return nil
}

func (tx *memoryTx) GetEntry(ctx context.Context, id int64) (Entry, error) {
	for _, e := range tx.repo.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrEntryNotFound
}

func (r *memoryRepo) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return (&memoryTx{repo: r}).GetEntry(ctx, id)
}

func (r *memoryRepo) ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.PartyID == filter.PartyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) ReplayBalance(ctx context.Context, partyID int64, currency Currency, asOf time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.entries {
		if e.PartyID != partyID || e.PostedAt.After(asOf) {
			continue
		}
		if currency == CurrencyAFG {
			sum = sum.Add(e.Movements.CreditAFG).Sub(e.Movements.DebitAFG)
		} else {
			sum = sum.Add(e.Movements.CreditUSD).Sub(e.Movements.DebitUSD)
		}
	}
	return sum, nil
}

func (r *memoryRepo) SnapshotBalance(ctx context.Context, partyID int64, currency Currency) (decimal.Decimal, error) {
	return r.snapshots[snapKey(partyID, currency)], nil
}

func (r *memoryRepo) Statement(ctx context.Context, partyID int64, from, to time.Time) (Statement, error) {
	stmt := Statement{PartyID: partyID, From: from, To: to}
	for _, e := range r.entries {
		if e.PartyID != partyID || e.PostedAt.Before(from) || e.PostedAt.After(to) {
			continue
		}
		stmt.AFG.TotalDebit = stmt.AFG.TotalDebit.Add(e.Movements.DebitAFG)
		stmt.AFG.TotalCredit = stmt.AFG.TotalCredit.Add(e.Movements.CreditAFG)
		stmt.USD.TotalDebit = stmt.USD.TotalDebit.Add(e.Movements.DebitUSD)
		stmt.USD.TotalCredit = stmt.USD.TotalCredit.Add(e.Movements.CreditUSD)
		stmt.EntryCount++
		at := e.PostedAt
		if stmt.LastEntryAt == nil || at.After(*stmt.LastEntryAt) {
			stmt.LastEntryAt = &at
		}
	}
	stmt.AFG.Balance = stmt.AFG.TotalCredit.Sub(stmt.AFG.TotalDebit)
	stmt.USD.Balance = stmt.USD.TotalCredit.Sub(stmt.USD.TotalDebit)
	return stmt, nil
}

func (r *memoryRepo) HasEntries(ctx context.Context, partyID int64) (bool, error) {
	for _, e := range r.entries {
		if e.PartyID == partyID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ListSnapshotDrift(ctx context.Context) ([]BalanceDrift, error) {
	var drifts []BalanceDrift
	for key, snap := range r.snapshots {
		var partyID int64
		var currency Currency
		_, _ = fmt.Sscanf(key, "%d:%s", &partyID, &currency)
		replayed, _ := r.ReplayBalance(ctx, partyID, currency, time.Now().UTC().Add(time.Hour))
		if !snap.Equal(replayed) {
			drifts = append(drifts, BalanceDrift{PartyID: partyID, Currency: currency, Snapshot: snap, Replayed: replayed})
		}
	}
	return drifts, nil
}

func TestPostEntryRejectsDoubleMovement(t *testing.T) {
	svc := NewService(newMemoryRepo(1), nil)
	_, err := svc.PostEntry(context.Background(), PostEntryInput{
		PartyID:       1,
		Movements:     Movements{DebitAFG: dec("10"), CreditAFG: dec("10")},
		ReferenceKind: RefAdjustment,
	})
	require.ErrorIs(t, err, ErrInvalidMovement)
}

func TestPostEntryRejectsUnknownParty(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil)
	_, err := svc.PostEntry(context.Background(), PostEntryInput{
		PartyID:       99,
		Movements:     Credit(CurrencyAFG, dec("100")),
		ReferenceKind: RefSale,
	})
	require.ErrorIs(t, err, ErrPartyNotFound)
	require.Empty(t, repo.entries)
}

func TestBalanceMatchesIndependentReplay(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	svc := NewService(repo, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	type acc struct{ afg, usd decimal.Decimal }
	want := map[int64]*acc{1: {}, 2: {}}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		partyID := int64(1 + rng.Intn(2))
		amount := decimal.NewFromInt(int64(1 + rng.Intn(10000))).Div(decimal.NewFromInt(100))
		currency := CurrencyAFG
		if rng.Intn(2) == 0 {
			currency = CurrencyUSD
		}
		var m Movements
		if rng.Intn(2) == 0 {
			m = Credit(currency, amount)
			if currency == CurrencyAFG {
				want[partyID].afg = want[partyID].afg.Add(amount)
			} else {
				want[partyID].usd = want[partyID].usd.Add(amount)
			}
		} else {
			m = Debit(currency, amount)
			if currency == CurrencyAFG {
				want[partyID].afg = want[partyID].afg.Sub(amount)
			} else {
				want[partyID].usd = want[partyID].usd.Sub(amount)
			}
		}
		_, err := svc.PostEntry(ctx, PostEntryInput{
			PartyID:       partyID,
			PostedAt:      base.Add(time.Duration(i) * time.Minute),
			Movements:     m,
			ReferenceKind: RefAdjustment,
		})
		require.NoError(t, err)
	}

	for partyID, a := range want {
		gotAFG, err := svc.Balance(ctx, partyID, CurrencyAFG, base.Add(300*time.Minute))
		require.NoError(t, err)
		require.True(t, a.afg.Equal(gotAFG), "AFG party %d: want %s got %s", partyID, a.afg, gotAFG)

		gotUSD, err := svc.Balance(ctx, partyID, CurrencyUSD, base.Add(300*time.Minute))
		require.NoError(t, err)
		require.True(t, a.usd.Equal(gotUSD), "USD party %d: want %s got %s", partyID, a.usd, gotUSD)

		// The maintained snapshot must agree with replay.
		snap, err := svc.SnapshotBalance(ctx, partyID, CurrencyAFG)
		require.NoError(t, err)
		require.True(t, a.afg.Equal(snap))
	}

	drifts, err := svc.CheckSnapshotIntegrity(ctx)
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestBalanceAsOfExcludesLaterEntries(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil)
	ctx := context.Background()

	early := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	late := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

	_, err := svc.PostEntry(ctx, PostEntryInput{PartyID: 1, PostedAt: early, Movements: Credit(CurrencyAFG, dec("5000")), ReferenceKind: RefSale})
	require.NoError(t, err)
	_, err = svc.PostEntry(ctx, PostEntryInput{PartyID: 1, PostedAt: late, Movements: Debit(CurrencyAFG, dec("2000")), ReferenceKind: RefPayment})
	require.NoError(t, err)

	mid, err := svc.Balance(ctx, 1, CurrencyAFG, early.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, dec("5000").Equal(mid))

	final, err := svc.Balance(ctx, 1, CurrencyAFG, late.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, dec("3000").Equal(final))
}

func TestStatementIdempotentAndZeroedWhenEmpty(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil)
	ctx := context.Background()

	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	empty, err := svc.Statement(ctx, 1, from, to)
	require.NoError(t, err)
	require.Zero(t, empty.EntryCount)
	require.True(t, empty.AFG.Balance.IsZero())
	require.Nil(t, empty.LastEntryAt)

	_, err = svc.PostEntry(ctx, PostEntryInput{PartyID: 1, PostedAt: from.Add(time.Hour), Movements: Credit(CurrencyAFG, dec("750.25")), ReferenceKind: RefSale})
	require.NoError(t, err)

	first, err := svc.Statement(ctx, 1, from, to)
	require.NoError(t, err)
	second, err := svc.Statement(ctx, 1, from, to)
	require.NoError(t, err)
	require.Equal(t, first.EntryCount, second.EntryCount)
	require.True(t, first.AFG.TotalCredit.Equal(second.AFG.TotalCredit))
	require.True(t, first.AFG.Balance.Equal(dec("750.25")))
}

func TestReverseEntryCancelsBalance(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil)
	ctx := context.Background()

	entry, err := svc.PostEntry(ctx, PostEntryInput{PartyID: 1, Movements: Credit(CurrencyAFG, dec("1200")), ReferenceKind: RefSale, ReferenceID: "evt-1"})
	require.NoError(t, err)

	reversal, err := svc.ReverseEntry(ctx, entry.ID, "")
	require.NoError(t, err)
	require.Equal(t, RefAdjustment, reversal.ReferenceKind)
	require.True(t, reversal.Movements.DebitAFG.Equal(dec("1200")))

	balance, err := svc.Balance(ctx, 1, CurrencyAFG, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}
