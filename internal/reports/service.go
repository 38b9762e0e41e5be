package reports

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/shared"
)

// Service projects ledger, inventory and production data into read models.
// Projections never mutate anything and read committed state only, so they
// are safe to run concurrently with posting.
type Service struct {
	repo    Repository
	cache   *Cache
	printer *message.Printer
}

// NewService builds Service. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, printer: message.NewPrinter(language.English)}
}

// Dashboard returns today's counters. Cached per UTC day and cache version.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	key, err := s.cache.BuildKey(ctx, "reports", "dashboard", day.Format("2006-01-02"))
	if err != nil {
		return Dashboard{}, err
	}
	var dash Dashboard
	err = s.cache.FetchJSON(ctx, key, &dash, func(ctx context.Context) (interface{}, error) {
		return s.buildDashboard(ctx, day)
	})
	return dash, err
}

func (s *Service) buildDashboard(ctx context.Context, day time.Time) (Dashboard, error) {
	from := day
	to := day.Add(24*time.Hour - time.Nanosecond)

	var (
		eggs     int
		feed     decimal.Decimal
		sales    decimal.Decimal
		lowStock int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		eggs, err = s.repo.EggsBetween(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		feed, err = s.repo.FeedBetween(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		sales, err = s.repo.SalesTotal(gctx, ledger.CurrencyAFG, RangeFilter{From: from, To: to})
		return err
	})
	g.Go(func() (err error) {
		lowStock, err = s.repo.LowStockCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		Date:             day.Format("2006-01-02"),
		EggsToday:        eggs,
		FeedKgToday:      feed.StringFixed(2),
		SalesAFGToday:    sales.StringFixed(2),
		LowStockCount:    lowStock,
		EggsTodayDisplay: s.printer.Sprint(number.Decimal(eggs)),
		SalesAFGDisplay:  "Afs " + s.displayAmount(sales),
	}, nil
}

// displayAmount renders an amount with thousands separators. The whole part
// is grouped by the printer and the fractional digits come straight from the
// decimal, so the value never passes through floating point.
func (s *Service) displayAmount(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole := amount.Truncate(0)
	out := s.printer.Sprint(number.Decimal(whole.IntPart()))
	if frac := amount.Sub(whole); !frac.IsZero() {
		out += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return sign + out
}

// Range aggregates activity over a date range with optional party and farm
// scoping. Cached per filter and cache version.
func (s *Service) Range(ctx context.Context, filter RangeFilter) (RangeReport, error) {
	if filter.To.IsZero() {
		filter.To = time.Now().UTC()
	}
	if !filter.From.IsZero() && filter.From.After(filter.To) {
		return RangeReport{}, shared.Validationf("reports: range start after end")
	}
	key, err := s.cache.BuildKey(ctx, "reports", "range",
		filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"),
		s.printer.Sprint(filter.PartyID), s.printer.Sprint(filter.FarmID))
	if err != nil {
		return RangeReport{}, err
	}
	var report RangeReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return s.buildRange(ctx, filter)
	})
	return report, err
}

func (s *Service) buildRange(ctx context.Context, filter RangeFilter) (RangeReport, error) {
	report := RangeReport{From: filter.From, To: filter.To}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.Eggs, err = s.repo.EggsBetween(gctx, filter.From, filter.To)
		return err
	})
	g.Go(func() (err error) {
		report.FeedKg, err = s.repo.FeedBetween(gctx, filter.From, filter.To)
		return err
	})
	g.Go(func() (err error) {
		report.SalesAFG, err = s.repo.SalesTotal(gctx, ledger.CurrencyAFG, filter)
		return err
	})
	g.Go(func() (err error) {
		report.SalesUSD, err = s.repo.SalesTotal(gctx, ledger.CurrencyUSD, filter)
		return err
	})
	g.Go(func() (err error) {
		report.PurchasesAFG, err = s.repo.PurchasesTotal(gctx, ledger.CurrencyAFG, filter)
		return err
	})
	g.Go(func() (err error) {
		report.PurchasesUSD, err = s.repo.PurchasesTotal(gctx, ledger.CurrencyUSD, filter)
		return err
	})
	g.Go(func() (err error) {
		report.ExpensesAFG, err = s.repo.ExpensesTotal(gctx, ledger.CurrencyAFG, filter)
		return err
	})
	g.Go(func() (err error) {
		report.ExpensesUSD, err = s.repo.ExpensesTotal(gctx, ledger.CurrencyUSD, filter)
		return err
	})
	g.Go(func() (err error) {
		report.LowStockCount, err = s.repo.LowStockCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return RangeReport{}, err
	}
	return report, nil
}

// WarmDashboard rebuilds today's dashboard projection into the cache. The
// background worker calls this after each cache bump.
func (s *Service) WarmDashboard(ctx context.Context) error {
	_, err := s.Dashboard(ctx)
	return err
}
