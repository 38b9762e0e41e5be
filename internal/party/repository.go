package party

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines party data access.
type Repository interface {
	Get(ctx context.Context, id int64) (Party, error)
	List(ctx context.Context, filter ListFilter) ([]Party, int, error)
	Create(ctx context.Context, input CreateInput) (Party, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Party, error)
	SoftDelete(ctx context.Context, id int64) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed party store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const partyColumns = `id, name, phone, address, notes, created_at, updated_at, deleted_at`

func (r *pgRepository) Get(ctx context.Context, id int64) (Party, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = $1 AND deleted_at IS NULL`, id)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, ErrNotFound
	}
	return p, err
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	search := "%" + filter.Search + "%"

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM parties
		WHERE deleted_at IS NULL AND ($1 = '%%' OR name ILIKE $1 OR phone ILIKE $1)`, search).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM parties
		WHERE deleted_at IS NULL AND ($1 = '%%' OR name ILIKE $1 OR phone ILIKE $1)
		ORDER BY name LIMIT $2 OFFSET $3`, search, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, 0, err
		}
		parties = append(parties, p)
	}
	return parties, total, rows.Err()
}

func (r *pgRepository) Create(ctx context.Context, input CreateInput) (Party, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO parties (name, phone, address, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+partyColumns,
		input.Name, input.Phone, input.Address, input.Notes)
	return scanParty(row)
}

func (r *pgRepository) Update(ctx context.Context, id int64, input UpdateInput) (Party, error) {
	row := r.pool.QueryRow(ctx, `UPDATE parties
		SET name = $2, phone = $3, address = $4, notes = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+partyColumns,
		id, input.Name, input.Phone, input.Address, input.Notes)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, ErrNotFound
	}
	return p, err
}

func (r *pgRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE parties SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanParty(row pgx.Row) (Party, error) {
	var (
		p         Party
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Address, &p.Notes, &p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err != nil {
		return Party{}, err
	}
	if deletedAt.Valid {
		at := deletedAt.Time
		p.DeletedAt = &at
	}
	return p, nil
}
