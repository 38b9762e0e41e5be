package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/inventory"
	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/platform/db"
)

// TxSet bundles the per-store transactional repositories riding on one
// database transaction. It is the unit-of-work boundary the coordinator
// commits through: ledger entry, stock movement and event row all land
// together or not at all.
type TxSet interface {
	Ledger() ledger.TxRepository
	Inventory() inventory.TxRepository
	Events() EventTxRepository
}

// UnitOfWork opens transactions spanning both stores and reads event rows.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(context.Context, TxSet) error) error

	GetSale(ctx context.Context, id uuid.UUID) (SaleRecord, error)
	GetPurchase(ctx context.Context, id uuid.UUID) (PurchaseRecord, error)
	GetExpense(ctx context.Context, id uuid.UUID) (ExpenseRecord, error)
	GetPayment(ctx context.Context, id uuid.UUID) (PaymentRecord, error)
}

// EventTxRepository persists event rows inside the unit of work.
type EventTxRepository interface {
	InsertSale(ctx context.Context, rec SaleRecord) error
	InsertPurchase(ctx context.Context, rec PurchaseRecord) error
	InsertExpense(ctx context.Context, rec ExpenseRecord) error
	InsertPayment(ctx context.Context, rec PaymentRecord) error

	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (SaleRecord, error)
	GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (PurchaseRecord, error)
	GetExpenseForUpdate(ctx context.Context, id uuid.UUID) (ExpenseRecord, error)
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (PaymentRecord, error)

	MarkVoided(ctx context.Context, kind EventKind, id, reversalID uuid.UUID, at time.Time) error
}

var _ UnitOfWork = (*pgUnitOfWork)(nil)
var _ EventTxRepository = (*pgEventTx)(nil)

type pgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork builds the Postgres-backed unit of work.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgUnitOfWork{pool: pool}
}

type pgTxSet struct {
	ledger    ledger.TxRepository
	inventory inventory.TxRepository
	events    *pgEventTx
}

func (s *pgTxSet) Ledger() ledger.TxRepository       { return s.ledger }
func (s *pgTxSet) Inventory() inventory.TxRepository { return s.inventory }
func (s *pgTxSet) Events() EventTxRepository         { return s.events }

func (u *pgUnitOfWork) WithTx(ctx context.Context, fn func(context.Context, TxSet) error) error {
	return db.WithTx(ctx, u.pool, func(tx pgx.Tx) error {
		set := &pgTxSet{
			ledger:    ledger.NewTxRepository(tx),
			inventory: inventory.NewTxRepository(tx),
			events:    &pgEventTx{tx: tx},
		}
		return fn(ctx, set)
	})
}

const saleColumns = `event_id, party_id, item_id, quantity, rate, total, currency, on_account, entry_id, offset_entry_id, movement_id, occurred_at, note, voided_at, reversal_id, created_at`

func (u *pgUnitOfWork) GetSale(ctx context.Context, id uuid.UUID) (SaleRecord, error) {
	row := u.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE event_id = $1`, id)
	rec, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleRecord{}, ErrEventNotFound
	}
	return rec, err
}

const purchaseColumns = `event_id, party_id, item_id, quantity, rate, total, currency, entry_id, movement_id, occurred_at, note, voided_at, reversal_id, created_at`

func (u *pgUnitOfWork) GetPurchase(ctx context.Context, id uuid.UUID) (PurchaseRecord, error) {
	row := u.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE event_id = $1`, id)
	rec, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, ErrEventNotFound
	}
	return rec, err
}

const expenseColumns = `event_id, party_id, farm_id, category, amount, currency, entry_id, occurred_at, note, voided_at, reversal_id, created_at`

func (u *pgUnitOfWork) GetExpense(ctx context.Context, id uuid.UUID) (ExpenseRecord, error) {
	row := u.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE event_id = $1`, id)
	rec, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExpenseRecord{}, ErrEventNotFound
	}
	return rec, err
}

const paymentColumns = `event_id, party_id, direction, amount, currency, entry_id, occurred_at, note, voided_at, reversal_id, created_at`

func (u *pgUnitOfWork) GetPayment(ctx context.Context, id uuid.UUID) (PaymentRecord, error) {
	row := u.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE event_id = $1`, id)
	rec, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentRecord{}, ErrEventNotFound
	}
	return rec, err
}

type pgEventTx struct {
	tx pgx.Tx
}

func (t *pgEventTx) InsertSale(ctx context.Context, rec SaleRecord) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO sales
			(event_id, party_id, item_id, quantity, rate, total, currency, on_account, entry_id, offset_entry_id, movement_id, occurred_at, note)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, NULLIF($10, 0), $11, $12, $13)`,
		rec.EventID, rec.PartyID, rec.ItemID,
		rec.Quantity.String(), rec.Rate.String(), rec.Total.String(),
		string(rec.Currency), rec.OnAccount, rec.EntryID, rec.OffsetEntryID, rec.MovementID,
		rec.OccurredAt, rec.Note)
	return err
}

func (t *pgEventTx) InsertPurchase(ctx context.Context, rec PurchaseRecord) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO purchases
			(event_id, party_id, item_id, quantity, rate, total, currency, entry_id, movement_id, occurred_at, note)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11)`,
		rec.EventID, rec.PartyID, rec.ItemID,
		rec.Quantity.String(), rec.Rate.String(), rec.Total.String(),
		string(rec.Currency), rec.EntryID, rec.MovementID, rec.OccurredAt, rec.Note)
	return err
}

func (t *pgEventTx) InsertExpense(ctx context.Context, rec ExpenseRecord) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO expenses
			(event_id, party_id, farm_id, category, amount, currency, entry_id, occurred_at, note)
		VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5::numeric, $6, NULLIF($7, 0), $8, $9)`,
		rec.EventID, rec.PartyID, rec.FarmID, string(rec.Category),
		rec.Amount.String(), string(rec.Currency), rec.EntryID, rec.OccurredAt, rec.Note)
	return err
}

func (t *pgEventTx) InsertPayment(ctx context.Context, rec PaymentRecord) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payments
			(event_id, party_id, direction, amount, currency, entry_id, occurred_at, note)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		rec.EventID, rec.PartyID, string(rec.Direction),
		rec.Amount.String(), string(rec.Currency), rec.EntryID, rec.OccurredAt, rec.Note)
	return err
}

func (t *pgEventTx) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (SaleRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE event_id = $1 FOR UPDATE`, id)
	rec, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleRecord{}, ErrEventNotFound
	}
	return rec, err
}

func (t *pgEventTx) GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (PurchaseRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE event_id = $1 FOR UPDATE`, id)
	rec, err := scanPurchase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, ErrEventNotFound
	}
	return rec, err
}

func (t *pgEventTx) GetExpenseForUpdate(ctx context.Context, id uuid.UUID) (ExpenseRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE event_id = $1 FOR UPDATE`, id)
	rec, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExpenseRecord{}, ErrEventNotFound
	}
	return rec, err
}

func (t *pgEventTx) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (PaymentRecord, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE event_id = $1 FOR UPDATE`, id)
	rec, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentRecord{}, ErrEventNotFound
	}
	return rec, err
}

func (t *pgEventTx) MarkVoided(ctx context.Context, kind EventKind, id, reversalID uuid.UUID, at time.Time) error {
	table, ok := eventTable(kind)
	if !ok {
		return fmt.Errorf("posting: no table for kind %q", kind)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+table+` SET voided_at = $2, reversal_id = $3 WHERE event_id = $1 AND voided_at IS NULL`,
		id, at, reversalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyVoided
	}
	return nil
}

func eventTable(kind EventKind) (string, bool) {
	switch kind {
	case EventSale:
		return "sales", true
	case EventPurchase:
		return "purchases", true
	case EventExpense:
		return "expenses", true
	case EventPayment:
		return "payments", true
	}
	return "", false
}

func scanSale(row pgx.Row) (SaleRecord, error) {
	var (
		rec              SaleRecord
		qty, rate, total pgtype.Numeric
		currency         string
		offsetEntry      pgtype.Int8
		voidedAt         pgtype.Timestamptz
		reversal         pgtype.UUID
	)
	err := row.Scan(&rec.EventID, &rec.PartyID, &rec.ItemID, &qty, &rate, &total, &currency,
		&rec.OnAccount, &rec.EntryID, &offsetEntry, &rec.MovementID, &rec.OccurredAt, &rec.Note,
		&voidedAt, &reversal, &rec.CreatedAt)
	if err != nil {
		return SaleRecord{}, err
	}
	rec.Quantity = numericToDecimal(qty)
	rec.Rate = numericToDecimal(rate)
	rec.Total = numericToDecimal(total)
	rec.Currency = ledger.Currency(currency)
	if offsetEntry.Valid {
		rec.OffsetEntryID = offsetEntry.Int64
	}
	rec.VoidedAt, rec.ReversalID = voidMeta(voidedAt, reversal)
	return rec, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var (
		rec              PurchaseRecord
		qty, rate, total pgtype.Numeric
		currency         string
		voidedAt         pgtype.Timestamptz
		reversal         pgtype.UUID
	)
	err := row.Scan(&rec.EventID, &rec.PartyID, &rec.ItemID, &qty, &rate, &total, &currency,
		&rec.EntryID, &rec.MovementID, &rec.OccurredAt, &rec.Note, &voidedAt, &reversal, &rec.CreatedAt)
	if err != nil {
		return PurchaseRecord{}, err
	}
	rec.Quantity = numericToDecimal(qty)
	rec.Rate = numericToDecimal(rate)
	rec.Total = numericToDecimal(total)
	rec.Currency = ledger.Currency(currency)
	rec.VoidedAt, rec.ReversalID = voidMeta(voidedAt, reversal)
	return rec, nil
}

func scanExpense(row pgx.Row) (ExpenseRecord, error) {
	var (
		rec             ExpenseRecord
		partyID, farmID pgtype.Int8
		entryID         pgtype.Int8
		category        string
		amount          pgtype.Numeric
		currency        string
		voidedAt        pgtype.Timestamptz
		reversal        pgtype.UUID
	)
	err := row.Scan(&rec.EventID, &partyID, &farmID, &category, &amount, &currency,
		&entryID, &rec.OccurredAt, &rec.Note, &voidedAt, &reversal, &rec.CreatedAt)
	if err != nil {
		return ExpenseRecord{}, err
	}
	if partyID.Valid {
		rec.PartyID = partyID.Int64
	}
	if farmID.Valid {
		rec.FarmID = farmID.Int64
	}
	if entryID.Valid {
		rec.EntryID = entryID.Int64
	}
	rec.Category = ExpenseCategory(category)
	rec.Amount = numericToDecimal(amount)
	rec.Currency = ledger.Currency(currency)
	rec.VoidedAt, rec.ReversalID = voidMeta(voidedAt, reversal)
	return rec, nil
}

func scanPayment(row pgx.Row) (PaymentRecord, error) {
	var (
		rec       PaymentRecord
		direction string
		amount    pgtype.Numeric
		currency  string
		voidedAt  pgtype.Timestamptz
		reversal  pgtype.UUID
	)
	err := row.Scan(&rec.EventID, &rec.PartyID, &direction, &amount, &currency,
		&rec.EntryID, &rec.OccurredAt, &rec.Note, &voidedAt, &reversal, &rec.CreatedAt)
	if err != nil {
		return PaymentRecord{}, err
	}
	rec.Direction = PaymentDirection(direction)
	rec.Amount = numericToDecimal(amount)
	rec.Currency = ledger.Currency(currency)
	rec.VoidedAt, rec.ReversalID = voidMeta(voidedAt, reversal)
	return rec, nil
}

func voidMeta(voidedAt pgtype.Timestamptz, reversal pgtype.UUID) (*time.Time, *uuid.UUID) {
	var at *time.Time
	var rev *uuid.UUID
	if voidedAt.Valid {
		t := voidedAt.Time
		at = &t
	}
	if reversal.Valid {
		id := uuid.UUID(reversal.Bytes)
		rev = &id
	}
	return at, rev
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
