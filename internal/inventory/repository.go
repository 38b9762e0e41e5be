package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/platform/db"
)

// Repository defines inventory data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetItem(ctx context.Context, id int64) (StockItem, error)
	ListItems(ctx context.Context) ([]StockItem, error)
	LowStockItems(ctx context.Context) ([]StockItem, error)
	ListMovements(ctx context.Context, filter ListMovementsFilter) ([]StockMovement, error)
	ListQuantityDrift(ctx context.Context) ([]QuantityDrift, error)

	CreateItem(ctx context.Context, input CreateItemInput, threshold, opening decimal.Decimal) (StockItem, error)
	UpdateItem(ctx context.Context, id int64, input UpdateItemInput, threshold decimal.Decimal) (StockItem, error)
	SoftDeleteItem(ctx context.Context, id int64) error
}

// TxRepository defines inventory writes within a transaction.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (StockItem, error)
	InsertMovement(ctx context.Context, input ApplyMovementInput) (int64, error)
	SetQuantity(ctx context.Context, itemID int64, qty decimal.Decimal) error
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed inventory store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// NewTxRepository exposes inventory writes on an existing transaction so the
// posting coordinator can commit stock and ledger effects together.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &pgTxRepository{tx: tx}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const itemColumns = `id, name, unit, quantity_on_hand, reorder_threshold, created_at, updated_at, deleted_at`

func (r *pgRepository) GetItem(ctx context.Context, id int64) (StockItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE id = $1 AND deleted_at IS NULL`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockItem{}, ErrItemNotFound
	}
	return item, err
}

func (r *pgRepository) ListItems(ctx context.Context) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *pgRepository) LowStockItems(ctx context.Context) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM stock_items
		WHERE deleted_at IS NULL AND quantity_on_hand <= reorder_threshold
		ORDER BY quantity_on_hand - reorder_threshold, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *pgRepository) ListMovements(ctx context.Context, filter ListMovementsFilter) ([]StockMovement, error) {
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
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, delta, reference_kind, reference_id, note, occurred_at, created_at
		FROM stock_movements
		WHERE item_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		ORDER BY occurred_at, id LIMIT $4`, filter.ItemID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var (
			m     StockMovement
			delta pgtype.Numeric
			kind  string
		)
		if err := rows.Scan(&m.ID, &m.ItemID, &delta, &kind, &m.ReferenceID, &m.Note, &m.OccurredAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Delta = numericToDecimal(delta)
		m.ReferenceKind = MovementKind(kind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *pgRepository) ListQuantityDrift(ctx context.Context) ([]QuantityDrift, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.name, i.quantity_on_hand, m.replayed
		FROM stock_items i
		JOIN LATERAL (
			SELECT COALESCE(SUM(delta), 0) AS replayed FROM stock_movements WHERE item_id = i.id
		) m ON TRUE
		WHERE i.deleted_at IS NULL AND i.quantity_on_hand <> m.replayed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []QuantityDrift
	for rows.Next() {
		var (
			d                QuantityDrift
			onHand, replayed pgtype.Numeric
		)
		if err := rows.Scan(&d.ItemID, &d.Name, &onHand, &replayed); err != nil {
			return nil, err
		}
		d.OnHand = numericToDecimal(onHand)
		d.Replayed = numericToDecimal(replayed)
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

// CreateItem inserts the item row and, for a non-zero opening quantity, the
// opening adjustment movement in the same transaction.
func (r *pgRepository) CreateItem(ctx context.Context, input CreateItemInput, threshold, opening decimal.Decimal) (StockItem, error) {
	var item StockItem
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO stock_items (name, unit, quantity_on_hand, reorder_threshold)
			VALUES ($1, $2, $3::numeric, $4::numeric)
			RETURNING `+itemColumns,
			input.Name, input.Unit, opening.String(), threshold.String())
		i, err := scanItem(row)
		if err != nil {
			return err
		}
		if !opening.IsZero() {
			txRepo := &pgTxRepository{tx: tx}
			if _, err := txRepo.InsertMovement(ctx, ApplyMovementInput{
				ItemID:        i.ID,
				Delta:         opening,
				ReferenceKind: MovementAdjustment,
				Note:          "opening quantity",
				OccurredAt:    time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		item = i
		return nil
	})
	return item, err
}

func (r *pgRepository) UpdateItem(ctx context.Context, id int64, input UpdateItemInput, threshold decimal.Decimal) (StockItem, error) {
	row := r.pool.QueryRow(ctx, `UPDATE stock_items
		SET name = $2, unit = $3, reorder_threshold = $4::numeric, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+itemColumns,
		id, input.Name, input.Unit, threshold.String())
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockItem{}, ErrItemNotFound
	}
	return item, err
}

func (r *pgRepository) SoftDeleteItem(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_items SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM stock_items
		WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockItem{}, ErrItemNotFound
	}
	return item, err
}

func (t *pgTxRepository) InsertMovement(ctx context.Context, input ApplyMovementInput) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_movements (item_id, delta, reference_kind, reference_id, note, occurred_at)
		VALUES ($1, $2::numeric, $3, $4, $5, $6)
		RETURNING id`,
		input.ItemID, input.Delta.String(), string(input.ReferenceKind), input.ReferenceID, input.Note, input.OccurredAt).Scan(&id)
	return id, err
}

func (t *pgTxRepository) SetQuantity(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_items SET quantity_on_hand = $2::numeric, updated_at = NOW() WHERE id = $1`,
		itemID, qty.String())
	return err
}

func scanItem(row pgx.Row) (StockItem, error) {
	var (
		i              StockItem
		qty, threshold pgtype.Numeric
		deletedAt      pgtype.Timestamptz
	)
	err := row.Scan(&i.ID, &i.Name, &i.Unit, &qty, &threshold, &i.CreatedAt, &i.UpdatedAt, &deletedAt)
	if err != nil {
		return StockItem{}, err
	}
	i.QuantityOnHand = numericToDecimal(qty)
	i.ReorderThreshold = numericToDecimal(threshold)
	if deletedAt.Valid {
		at := deletedAt.Time
		i.DeletedAt = &at
	}
	return i, nil
}

func collectItems(rows pgx.Rows) ([]StockItem, error) {
	var items []StockItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
