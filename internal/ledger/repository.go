package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/platform/db"
)

// Repository defines ledger data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetEntry(ctx context.Context, id int64) (Entry, error)
	ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error)
	ReplayBalance(ctx context.Context, partyID int64, currency Currency, asOf time.Time) (decimal.Decimal, error)
	SnapshotBalance(ctx context.Context, partyID int64, currency Currency) (decimal.Decimal, error)
	Statement(ctx context.Context, partyID int64, from, to time.Time) (Statement, error)
	HasEntries(ctx context.Context, partyID int64) (bool, error)
	ListSnapshotDrift(ctx context.Context) ([]BalanceDrift, error)
}

// TxRepository defines ledger writes within a transaction.
type TxRepository interface {
	PartyExists(ctx context.Context, partyID int64) (bool, error)
	InsertEntry(ctx context.Context, input PostEntryInput) (int64, error)
	ApplyBalanceDelta(ctx context.Context, partyID int64, currency Currency, delta decimal.Decimal) error
	GetEntry(ctx context.Context, id int64) (Entry, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed ledger store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// NewTxRepository exposes ledger writes on an existing transaction. The
// posting coordinator uses this to commit ledger and stock effects together.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &pgTxRepository{q: tx}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{q: tx})
	})
}

const entryColumns = `id, party_id, posted_at, debit_afg, credit_afg, debit_usd, credit_usd, reference_kind, reference_id, description, created_at`

func (r *pgRepository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return getEntry(ctx, r.pool, id)
}

func getEntry(ctx context.Context, q querier, id int64) (Entry, error) {
	row := q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, err
}

func (r *pgRepository) ListEntries(ctx context.Context, filter ListEntriesFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	from := filter.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := filter.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
		WHERE party_id = $1 AND posted_at >= $2 AND posted_at <= $3
		ORDER BY posted_at, id LIMIT $4`, filter.PartyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *pgRepository) ReplayBalance(ctx context.Context, partyID int64, currency Currency, asOf time.Time) (decimal.Decimal, error) {
	debitCol, creditCol := currencyColumns(currency)
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT COALESCE(SUM(%s - %s), 0) FROM ledger_entries WHERE party_id = $1 AND posted_at <= $2`,
		creditCol, debitCol), partyID, asOf).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}

func (r *pgRepository) SnapshotBalance(ctx context.Context, partyID int64, currency Currency) (decimal.Decimal, error) {
	var bal pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT balance FROM party_balances WHERE party_id = $1 AND currency = $2`,
		partyID, string(currency)).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(bal), nil
}

func (r *pgRepository) Statement(ctx context.Context, partyID int64, from, to time.Time) (Statement, error) {
	var (
		debitAFG, creditAFG pgtype.Numeric
		debitUSD, creditUSD pgtype.Numeric
		count               int64
		last                pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, `SELECT
			COALESCE(SUM(debit_afg), 0), COALESCE(SUM(credit_afg), 0),
			COALESCE(SUM(debit_usd), 0), COALESCE(SUM(credit_usd), 0),
			COUNT(*), MAX(posted_at)
		FROM ledger_entries
		WHERE party_id = $1 AND posted_at >= $2 AND posted_at <= $3`,
		partyID, from, to).Scan(&debitAFG, &creditAFG, &debitUSD, &creditUSD, &count, &last)
	if err != nil {
		return Statement{}, err
	}

	stmt := Statement{
		PartyID:    partyID,
		From:       from,
		To:         to,
		EntryCount: count,
	}
	stmt.AFG.TotalDebit = numericToDecimal(debitAFG)
	stmt.AFG.TotalCredit = numericToDecimal(creditAFG)
	stmt.AFG.Balance = stmt.AFG.TotalCredit.Sub(stmt.AFG.TotalDebit)
	stmt.USD.TotalDebit = numericToDecimal(debitUSD)
	stmt.USD.TotalCredit = numericToDecimal(creditUSD)
	stmt.USD.Balance = stmt.USD.TotalCredit.Sub(stmt.USD.TotalDebit)
	if last.Valid {
		at := last.Time
		stmt.LastEntryAt = &at
	}
	return stmt, nil
}

func (r *pgRepository) HasEntries(ctx context.Context, partyID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE party_id = $1)`, partyID).Scan(&exists)
	return exists, err
}

func (r *pgRepository) ListSnapshotDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.party_id, b.currency, b.balance, r.replayed
		FROM party_balances b
		JOIN LATERAL (
			SELECT COALESCE(SUM(CASE WHEN b.currency = 'AFG' THEN credit_afg - debit_afg ELSE credit_usd - debit_usd END), 0) AS replayed
			FROM ledger_entries e WHERE e.party_id = b.party_id
		) r ON TRUE
		WHERE b.balance <> r.replayed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []BalanceDrift
	for rows.Next() {
		var (
			d        BalanceDrift
			currency string
			snapshot pgtype.Numeric
			replayed pgtype.Numeric
		)
		if err := rows.Scan(&d.PartyID, &currency, &snapshot, &replayed); err != nil {
			return nil, err
		}
		d.Currency = Currency(currency)
		d.Snapshot = numericToDecimal(snapshot)
		d.Replayed = numericToDecimal(replayed)
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

type pgTxRepository struct {
	q querier
}

func (tx *pgTxRepository) PartyExists(ctx context.Context, partyID int64) (bool, error) {
	var exists bool
	err := tx.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parties WHERE id = $1 AND deleted_at IS NULL)`, partyID).Scan(&exists)
	return exists, err
}

func (tx *pgTxRepository) InsertEntry(ctx context.Context, input PostEntryInput) (int64, error) {
	var id int64
	err := tx.q.QueryRow(ctx, `INSERT INTO ledger_entries
			(party_id, posted_at, debit_afg, credit_afg, debit_usd, credit_usd, reference_kind, reference_id, description)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9)
		RETURNING id`,
		input.PartyID, input.PostedAt,
		input.Movements.DebitAFG.String(), input.Movements.CreditAFG.String(),
		input.Movements.DebitUSD.String(), input.Movements.CreditUSD.String(),
		string(input.ReferenceKind), input.ReferenceID, input.Description).Scan(&id)
	return id, err
}

func (tx *pgTxRepository) ApplyBalanceDelta(ctx context.Context, partyID int64, currency Currency, delta decimal.Decimal) error {
	_, err := tx.q.Exec(ctx, `INSERT INTO party_balances (party_id, currency, balance, updated_at)
		VALUES ($1, $2, $3::numeric, NOW())
		ON CONFLICT (party_id, currency)
		DO UPDATE SET balance = party_balances.balance + EXCLUDED.balance, updated_at = NOW()`,
		partyID, string(currency), delta.String())
	return err
}

func (tx *pgTxRepository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return getEntry(ctx, tx.q, id)
}

// Helpers

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e                   Entry
		debitAFG, creditAFG pgtype.Numeric
		debitUSD, creditUSD pgtype.Numeric
		kind                string
	)
	err := row.Scan(&e.ID, &e.PartyID, &e.PostedAt, &debitAFG, &creditAFG, &debitUSD, &creditUSD,
		&kind, &e.ReferenceID, &e.Description, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.Movements = Movements{
		DebitAFG:  numericToDecimal(debitAFG),
		CreditAFG: numericToDecimal(creditAFG),
		DebitUSD:  numericToDecimal(debitUSD),
		CreditUSD: numericToDecimal(creditUSD),
	}
	e.ReferenceKind = ReferenceKind(kind)
	return e, nil
}

func currencyColumns(c Currency) (debitCol, creditCol string) {
	if c == CurrencyUSD {
		return "debit_usd", "credit_usd"
	}
	return "debit_afg", "credit_afg"
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
