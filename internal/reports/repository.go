package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/ledger"
)

// Repository defines the read-only aggregation queries. Every query reads
// committed rows only; voided events are excluded.
type Repository interface {
	EggsBetween(ctx context.Context, from, to time.Time) (int, error)
	FeedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	SalesTotal(ctx context.Context, currency ledger.Currency, filter RangeFilter) (decimal.Decimal, error)
	PurchasesTotal(ctx context.Context, currency ledger.Currency, filter RangeFilter) (decimal.Decimal, error)
	ExpensesTotal(ctx context.Context, currency ledger.Currency, filter RangeFilter) (decimal.Decimal, error)
	LowStockCount(ctx context.Context) (int, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed report store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) EggsBetween(ctx context.Context, from, to time.Time) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(small + medium + large + broken), 0)
		FROM egg_production WHERE produced_on >= $1 AND produced_on <= $2`, from, to).Scan(&total)
	return total, err
}

func (r *pgRepository) FeedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0)
		FROM feed_issues WHERE issued_on >= $1 AND issued_on <= $2 AND voided_at IS NULL`, from, to).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}

func (r *pgRepository) SalesTotal(ctx context.Context, currency ledger.Currency, filter RangeFilter) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM sales
		WHERE currency = $1 AND occurred_at >= $2 AND occurred_at <= $3 AND voided_at IS NULL
			AND ($4 = 0 OR party_id = $4)`,
		string(currency), filter.From, filter.To, filter.PartyID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}

func (r *pgRepository) PurchasesTotal(ctx context.Context, currency ledger.Currency, filter RangeFilter) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM purchases
		WHERE currency = $1 AND occurred_at >= $2 AND occurred_at <= $3 AND voided_at IS NULL
			AND ($4 = 0 OR party_id = $4)`,
		string(currency), filter.From, filter.To, filter.PartyID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}

func (r *pgRepository) ExpensesTotal(ctx context.Context, currency ledger.Currency, filter RangeFilter) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE currency = $1 AND occurred_at >= $2 AND occurred_at <= $3 AND voided_at IS NULL
			AND ($4 = 0 OR party_id = $4) AND ($5 = 0 OR farm_id = $5)`,
		string(currency), filter.From, filter.To, filter.PartyID, filter.FarmID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}

func (r *pgRepository) LowStockCount(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_items
		WHERE deleted_at IS NULL AND quantity_on_hand <= reorder_threshold`).Scan(&n)
	return n, err
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
