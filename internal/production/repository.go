package production

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/inventory"
	"github.com/farmledger/farmledger/internal/platform/db"
)

// Repository defines production data access.
type Repository interface {
	GetRecord(ctx context.Context, id int64) (EggRecord, error)
	ListRecords(ctx context.Context, filter EggRangeFilter) ([]EggRecord, error)
	CreateRecord(ctx context.Context, input EggInput, day time.Time) (EggRecord, error)
	UpdateRecord(ctx context.Context, id int64, input EggInput, day time.Time) (EggRecord, error)
	DeleteRecord(ctx context.Context, id int64) error

	WithTx(ctx context.Context, fn func(context.Context, FeedTx) error) error
	GetIssue(ctx context.Context, id int64) (FeedIssue, error)
	ListIssues(ctx context.Context, shedID int64, from, to time.Time) ([]FeedIssue, error)
}

// FeedTx bundles the writes of one feed issue: the issue row and its stock
// movement commit together.
type FeedTx interface {
	Inventory() inventory.TxRepository
	InsertIssue(ctx context.Context, issue FeedIssue) (int64, error)
	GetIssueForUpdate(ctx context.Context, id int64) (FeedIssue, error)
	MarkIssueVoided(ctx context.Context, id int64, at time.Time) error
}

var _ Repository = (*pgRepository)(nil)
var _ FeedTx = (*pgFeedTx)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed production store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const recordColumns = `id, shed_id, produced_on, small, medium, large, broken, created_at, updated_at`

func (r *pgRepository) GetRecord(ctx context.Context, id int64) (EggRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM egg_production WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return EggRecord{}, ErrRecordNotFound
	}
	return rec, err
}

func (r *pgRepository) ListRecords(ctx context.Context, filter EggRangeFilter) ([]EggRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM egg_production
		WHERE shed_id = $1 AND produced_on >= $2 AND produced_on <= $3
		ORDER BY produced_on`, filter.ShedID, filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EggRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *pgRepository) CreateRecord(ctx context.Context, input EggInput, day time.Time) (EggRecord, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO egg_production (shed_id, produced_on, small, medium, large, broken)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+recordColumns,
		input.ShedID, day, input.Small, input.Medium, input.Large, input.Broken)
	rec, err := scanRecord(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return EggRecord{}, ErrDuplicateDay
	}
	return rec, err
}

func (r *pgRepository) UpdateRecord(ctx context.Context, id int64, input EggInput, day time.Time) (EggRecord, error) {
	row := r.pool.QueryRow(ctx, `UPDATE egg_production
		SET produced_on = $2, small = $3, medium = $4, large = $5, broken = $6, updated_at = NOW()
		WHERE id = $1 RETURNING `+recordColumns,
		id, day, input.Small, input.Medium, input.Large, input.Broken)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return EggRecord{}, ErrRecordNotFound
	}
	return rec, err
}

func (r *pgRepository) DeleteRecord(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM egg_production WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, FeedTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgFeedTx{tx: tx, inv: inventory.NewTxRepository(tx)})
	})
}

const issueColumns = `id, event_id, shed_id, item_id, quantity, issued_on, movement_id, note, voided_at, created_at`

func (r *pgRepository) GetIssue(ctx context.Context, id int64) (FeedIssue, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM feed_issues WHERE id = $1`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return FeedIssue{}, ErrIssueNotFound
	}
	return issue, err
}

func (r *pgRepository) ListIssues(ctx context.Context, shedID int64, from, to time.Time) ([]FeedIssue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+issueColumns+` FROM feed_issues
		WHERE shed_id = $1 AND issued_on >= $2 AND issued_on <= $3
		ORDER BY issued_on, id`, shedID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []FeedIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

type pgFeedTx struct {
	tx  pgx.Tx
	inv inventory.TxRepository
}

func (t *pgFeedTx) Inventory() inventory.TxRepository { return t.inv }

func (t *pgFeedTx) InsertIssue(ctx context.Context, issue FeedIssue) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO feed_issues (event_id, shed_id, item_id, quantity, issued_on, movement_id, note)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7) RETURNING id`,
		issue.EventID, issue.ShedID, issue.ItemID, issue.Quantity.String(),
		issue.IssuedOn, issue.MovementID, issue.Note).Scan(&id)
	return id, err
}

func (t *pgFeedTx) GetIssueForUpdate(ctx context.Context, id int64) (FeedIssue, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+issueColumns+` FROM feed_issues WHERE id = $1 FOR UPDATE`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return FeedIssue{}, ErrIssueNotFound
	}
	return issue, err
}

func (t *pgFeedTx) MarkIssueVoided(ctx context.Context, id int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE feed_issues SET voided_at = $2 WHERE id = $1 AND voided_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIssueVoided
	}
	return nil
}

func scanRecord(row pgx.Row) (EggRecord, error) {
	var rec EggRecord
	err := row.Scan(&rec.ID, &rec.ShedID, &rec.ProducedOn, &rec.Small, &rec.Medium, &rec.Large, &rec.Broken,
		&rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func scanIssue(row pgx.Row) (FeedIssue, error) {
	var (
		issue    FeedIssue
		qty      pgtype.Numeric
		voidedAt pgtype.Timestamptz
	)
	err := row.Scan(&issue.ID, &issue.EventID, &issue.ShedID, &issue.ItemID, &qty, &issue.IssuedOn,
		&issue.MovementID, &issue.Note, &voidedAt, &issue.CreatedAt)
	if err != nil {
		return FeedIssue{}, err
	}
	issue.Quantity = numericToDecimal(qty)
	if voidedAt.Valid {
		at := voidedAt.Time
		issue.VoidedAt = &at
	}
	return issue, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
