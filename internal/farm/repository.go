package farm

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository defines farm data access.
type Repository interface {
	CountFarms(ctx context.Context) (int, error)
	GetFarm(ctx context.Context, id int64) (Farm, error)
	ListFarms(ctx context.Context) ([]Farm, error)
	CreateFarm(ctx context.Context, input FarmInput) (Farm, error)
	UpdateFarm(ctx context.Context, id int64, input FarmInput) (Farm, error)
	SoftDeleteFarm(ctx context.Context, id int64) error

	GetShed(ctx context.Context, id int64) (Shed, error)
	ListSheds(ctx context.Context, farmID int64) ([]Shed, error)
	CreateShed(ctx context.Context, input ShedInput) (Shed, error)
	UpdateShed(ctx context.Context, id int64, input ShedInput) (Shed, error)
	SoftDeleteShed(ctx context.Context, id int64) error

	GetFlock(ctx context.Context, id int64) (Flock, error)
	ListFlocks(ctx context.Context, shedID int64) ([]Flock, error)
	CreateFlock(ctx context.Context, input FlockInput, placed time.Time) (Flock, error)
	UpdateFlock(ctx context.Context, id int64, input FlockInput, placed time.Time) (Flock, error)
	DeleteFlock(ctx context.Context, id int64) error

	Summary(ctx context.Context, farmID int64) (Summary, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed farm store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const farmColumns = `id, name, location, created_at, updated_at, deleted_at`

func (r *pgRepository) CountFarms(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM farms WHERE deleted_at IS NULL`).Scan(&n)
	return n, err
}

func (r *pgRepository) GetFarm(ctx context.Context, id int64) (Farm, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+farmColumns+` FROM farms WHERE id = $1 AND deleted_at IS NULL`, id)
	f, err := scanFarm(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Farm{}, ErrFarmNotFound
	}
	return f, err
}

func (r *pgRepository) ListFarms(ctx context.Context) ([]Farm, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+farmColumns+` FROM farms WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var farms []Farm
	for rows.Next() {
		f, err := scanFarm(rows)
		if err != nil {
			return nil, err
		}
		farms = append(farms, f)
	}
	return farms, rows.Err()
}

func (r *pgRepository) CreateFarm(ctx context.Context, input FarmInput) (Farm, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO farms (name, location) VALUES ($1, $2) RETURNING `+farmColumns,
		input.Name, input.Location)
	return scanFarm(row)
}

func (r *pgRepository) UpdateFarm(ctx context.Context, id int64, input FarmInput) (Farm, error) {
	row := r.pool.QueryRow(ctx, `UPDATE farms SET name = $2, location = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL RETURNING `+farmColumns,
		id, input.Name, input.Location)
	f, err := scanFarm(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Farm{}, ErrFarmNotFound
	}
	return f, err
}

func (r *pgRepository) SoftDeleteFarm(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE farms SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFarmNotFound
	}
	return nil
}

const shedColumns = `id, farm_id, name, capacity, created_at, updated_at, deleted_at`

func (r *pgRepository) GetShed(ctx context.Context, id int64) (Shed, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+shedColumns+` FROM sheds WHERE id = $1 AND deleted_at IS NULL`, id)
	s, err := scanShed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shed{}, ErrShedNotFound
	}
	return s, err
}

func (r *pgRepository) ListSheds(ctx context.Context, farmID int64) ([]Shed, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shedColumns+` FROM sheds
		WHERE farm_id = $1 AND deleted_at IS NULL ORDER BY name`, farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sheds []Shed
	for rows.Next() {
		s, err := scanShed(rows)
		if err != nil {
			return nil, err
		}
		sheds = append(sheds, s)
	}
	return sheds, rows.Err()
}

func (r *pgRepository) CreateShed(ctx context.Context, input ShedInput) (Shed, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO sheds (farm_id, name, capacity) VALUES ($1, $2, $3)
		RETURNING `+shedColumns,
		input.FarmID, input.Name, input.Capacity)
	return scanShed(row)
}

func (r *pgRepository) UpdateShed(ctx context.Context, id int64, input ShedInput) (Shed, error) {
	row := r.pool.QueryRow(ctx, `UPDATE sheds SET name = $2, capacity = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL RETURNING `+shedColumns,
		id, input.Name, input.Capacity)
	s, err := scanShed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shed{}, ErrShedNotFound
	}
	return s, err
}

func (r *pgRepository) SoftDeleteShed(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sheds SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShedNotFound
	}
	return nil
}

const flockColumns = `id, shed_id, breed, bird_count, placed_date, created_at, updated_at`

func (r *pgRepository) GetFlock(ctx context.Context, id int64) (Flock, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+flockColumns+` FROM flocks WHERE id = $1`, id)
	f, err := scanFlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Flock{}, ErrFlockNotFound
	}
	return f, err
}

func (r *pgRepository) ListFlocks(ctx context.Context, shedID int64) ([]Flock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flockColumns+` FROM flocks
		WHERE shed_id = $1 ORDER BY placed_date DESC`, shedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flocks []Flock
	for rows.Next() {
		f, err := scanFlock(rows)
		if err != nil {
			return nil, err
		}
		flocks = append(flocks, f)
	}
	return flocks, rows.Err()
}

func (r *pgRepository) CreateFlock(ctx context.Context, input FlockInput, placed time.Time) (Flock, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO flocks (shed_id, breed, bird_count, placed_date)
		VALUES ($1, $2, $3, $4) RETURNING `+flockColumns,
		input.ShedID, input.Breed, input.BirdCount, placed)
	return scanFlock(row)
}

func (r *pgRepository) UpdateFlock(ctx context.Context, id int64, input FlockInput, placed time.Time) (Flock, error) {
	row := r.pool.QueryRow(ctx, `UPDATE flocks SET breed = $2, bird_count = $3, placed_date = $4, updated_at = NOW()
		WHERE id = $1 RETURNING `+flockColumns,
		id, input.Breed, input.BirdCount, placed)
	f, err := scanFlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Flock{}, ErrFlockNotFound
	}
	return f, err
}

func (r *pgRepository) DeleteFlock(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM flocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFlockNotFound
	}
	return nil
}

func (r *pgRepository) Summary(ctx context.Context, farmID int64) (Summary, error) {
	farm, err := r.GetFarm(ctx, farmID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Farm: farm}

	err = r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(capacity), 0)
		FROM sheds WHERE farm_id = $1 AND deleted_at IS NULL`, farmID).
		Scan(&summary.ShedCount, &summary.Capacity)
	if err != nil {
		return Summary{}, err
	}

	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(f.bird_count), 0)
		FROM flocks f JOIN sheds s ON s.id = f.shed_id
		WHERE s.farm_id = $1 AND s.deleted_at IS NULL`, farmID).
		Scan(&summary.BirdCount)
	if err != nil {
		return Summary{}, err
	}

	var expense pgtype.Numeric
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM expenses WHERE farm_id = $1 AND currency = 'AFG' AND voided_at IS NULL`, farmID).
		Scan(&expense, &summary.ExpenseCount)
	if err != nil {
		return Summary{}, err
	}
	summary.ExpenseAFG = numericToDecimal(expense)
	return summary, nil
}

func scanFarm(row pgx.Row) (Farm, error) {
	var (
		f         Farm
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(&f.ID, &f.Name, &f.Location, &f.CreatedAt, &f.UpdatedAt, &deletedAt)
	if err != nil {
		return Farm{}, err
	}
	if deletedAt.Valid {
		at := deletedAt.Time
		f.DeletedAt = &at
	}
	return f, nil
}

func scanShed(row pgx.Row) (Shed, error) {
	var (
		s         Shed
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(&s.ID, &s.FarmID, &s.Name, &s.Capacity, &s.CreatedAt, &s.UpdatedAt, &deletedAt)
	if err != nil {
		return Shed{}, err
	}
	if deletedAt.Valid {
		at := deletedAt.Time
		s.DeletedAt = &at
	}
	return s, nil
}

func scanFlock(row pgx.Row) (Flock, error) {
	var f Flock
	err := row.Scan(&f.ID, &f.ShedID, &f.Breed, &f.BirdCount, &f.PlacedDate, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
