package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmledger/farmledger/internal/ledger"
)

type fakeRepo struct {
	eggs      int
	feed      decimal.Decimal
	sales     map[ledger.Currency]decimal.Decimal
	purchases map[ledger.Currency]decimal.Decimal
	expenses  map[ledger.Currency]decimal.Decimal
	lowStock  int
	calls     int
}

func (f *fakeRepo) EggsBetween(ctx context.Context, from, to time.Time) (int, error) {
	f.calls++
	return f.eggs, nil
}

func (f *fakeRepo) FeedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return f.feed, nil
}

func (f *fakeRepo) SalesTotal(ctx context.Context, c ledger.Currency, filter RangeFilter) (decimal.Decimal, error) {
	return f.sales[c], nil
}

func (f *fakeRepo) PurchasesTotal(ctx context.Context, c ledger.Currency, filter RangeFilter) (decimal.Decimal, error) {
	return f.purchases[c], nil
}

func (f *fakeRepo) ExpensesTotal(ctx context.Context, c ledger.Currency, filter RangeFilter) (decimal.Decimal, error) {
	return f.expenses[c], nil
}

func (f *fakeRepo) LowStockCount(ctx context.Context) (int, error) {
	return f.lowStock, nil
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		eggs:      12430,
		feed:      decimal.RequireFromString("310.5"),
		sales:     map[ledger.Currency]decimal.Decimal{ledger.CurrencyAFG: decimal.NewFromInt(45600)},
		purchases: map[ledger.Currency]decimal.Decimal{ledger.CurrencyAFG: decimal.NewFromInt(12000)},
		expenses:  map[ledger.Currency]decimal.Decimal{ledger.CurrencyAFG: decimal.NewFromInt(3500)},
		lowStock:  2,
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestDashboardCountersAndFormatting(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, newTestCache(t))

	dash, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12430, dash.EggsToday)
	require.Equal(t, "310.50", dash.FeedKgToday)
	require.Equal(t, "45600.00", dash.SalesAFGToday)
	require.Equal(t, 2, dash.LowStockCount)
	require.Equal(t, "12,430", dash.EggsTodayDisplay)
	require.Equal(t, "Afs 45,600", dash.SalesAFGDisplay)
}

func TestDashboardDisplayKeepsDecimalExact(t *testing.T) {
	repo := newFakeRepo()
	// One above 2^53, where float64 loses the last digit.
	repo.sales[ledger.CurrencyAFG] = decimal.RequireFromString("9007199254740993")
	svc := NewService(repo, newTestCache(t))

	dash, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Afs 9,007,199,254,740,993", dash.SalesAFGDisplay)
}

func TestDashboardDisplayShowsFraction(t *testing.T) {
	repo := newFakeRepo()
	repo.sales[ledger.CurrencyAFG] = decimal.RequireFromString("45600.50")
	svc := NewService(repo, newTestCache(t))

	dash, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Afs 45,600.50", dash.SalesAFGDisplay)
}

func TestDashboardServedFromCacheUntilBump(t *testing.T) {
	repo := newFakeRepo()
	cache := newTestCache(t)
	svc := NewService(repo, cache)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	loads := repo.calls

	// Second read hits the cache; the repo is untouched.
	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, loads, repo.calls)

	// A bump changes the version, so the next read rebuilds.
	require.NoError(t, cache.Bump(ctx))
	repo.eggs = 99
	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 99, dash.EggsToday)
}

func TestRangeReportAggregates(t *testing.T) {
	repo := newFakeRepo()
	repo.sales[ledger.CurrencyUSD] = decimal.NewFromInt(820)
	svc := NewService(repo, newTestCache(t))

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	report, err := svc.Range(context.Background(), RangeFilter{From: from, To: to})
	require.NoError(t, err)
	require.Equal(t, 12430, report.Eggs)
	require.True(t, report.SalesAFG.Equal(decimal.NewFromInt(45600)))
	require.True(t, report.SalesUSD.Equal(decimal.NewFromInt(820)))
	require.True(t, report.ExpensesAFG.Equal(decimal.NewFromInt(3500)))
	require.Equal(t, 2, report.LowStockCount)
}

func TestRangeRejectsInvertedRange(t *testing.T) {
	svc := NewService(newFakeRepo(), newTestCache(t))
	_, err := svc.Range(context.Background(), RangeFilter{
		From: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}
