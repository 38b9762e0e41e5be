package farm

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmledger/farmledger/internal/shared"
)

type memoryRepo struct {
	farms     map[int64]Farm
	sheds     map[int64]Shed
	flocks    map[int64]Flock
	nextFarm  int64
	nextShed  int64
	nextFlock int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{farms: map[int64]Farm{}, sheds: map[int64]Shed{}, flocks: map[int64]Flock{}}
}

func (r *memoryRepo) CountFarms(ctx context.Context) (int, error) {
	n := 0
	for _, f := range r.farms {
		if f.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) GetFarm(ctx context.Context, id int64) (Farm, error) {
	f, ok := r.farms[id]
	if !ok || f.DeletedAt != nil {
		return Farm{}, ErrFarmNotFound
	}
	return f, nil
}

func (r *memoryRepo) ListFarms(ctx context.Context) ([]Farm, error) {
	var out []Farm
	for _, f := range r.farms {
		if f.DeletedAt == nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateFarm(ctx context.Context, input FarmInput) (Farm, error) {
	r.nextFarm++
	f := Farm{ID: r.nextFarm, Name: input.Name, Location: input.Location}
	r.farms[f.ID] = f
	return f, nil
}

func (r *memoryRepo) UpdateFarm(ctx context.Context, id int64, input FarmInput) (Farm, error) {
	f, ok := r.farms[id]
	if !ok || f.DeletedAt != nil {
		return Farm{}, ErrFarmNotFound
	}
	f.Name = input.Name
	f.Location = input.Location
	r.farms[id] = f
	return f, nil
}

func (r *memoryRepo) SoftDeleteFarm(ctx context.Context, id int64) error {
	f, ok := r.farms[id]
	if !ok || f.DeletedAt != nil {
		return ErrFarmNotFound
	}
	now := time.Now().UTC()
	f.DeletedAt = &now
	r.farms[id] = f
	return nil
}

func (r *memoryRepo) GetShed(ctx context.Context, id int64) (Shed, error) {
	s, ok := r.sheds[id]
	if !ok || s.DeletedAt != nil {
		return Shed{}, ErrShedNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListSheds(ctx context.Context, farmID int64) ([]Shed, error) {
	var out []Shed
	for _, s := range r.sheds {
		if s.FarmID == farmID && s.DeletedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateShed(ctx context.Context, input ShedInput) (Shed, error) {
	r.nextShed++
	s := Shed{ID: r.nextShed, FarmID: input.FarmID, Name: input.Name, Capacity: input.Capacity}
	r.sheds[s.ID] = s
	return s, nil
}

func (r *memoryRepo) UpdateShed(ctx context.Context, id int64, input ShedInput) (Shed, error) {
	s, ok := r.sheds[id]
	if !ok || s.DeletedAt != nil {
		return Shed{}, ErrShedNotFound
	}
	s.Name = input.Name
	s.Capacity = input.Capacity
	r.sheds[id] = s
	return s, nil
}

func (r *memoryRepo) SoftDeleteShed(ctx context.Context, id int64) error {
	s, ok := r.sheds[id]
	if !ok || s.DeletedAt != nil {
		return ErrShedNotFound
	}
	now := time.Now().UTC()
	s.DeletedAt = &now
	r.sheds[id] = s
	return nil
}

func (r *memoryRepo) GetFlock(ctx context.Context, id int64) (Flock, error) {
	f, ok := r.flocks[id]
	if !ok {
		return Flock{}, ErrFlockNotFound
	}
	return f, nil
}

func (r *memoryRepo) ListFlocks(ctx context.Context, shedID int64) ([]Flock, error) {
	var out []Flock
	for _, f := range r.flocks {
		if f.ShedID == shedID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateFlock(ctx context.Context, input FlockInput, placed time.Time) (Flock, error) {
	r.nextFlock++
	f := Flock{ID: r.nextFlock, ShedID: input.ShedID, Breed: input.Breed, BirdCount: input.BirdCount, PlacedDate: placed}
	r.flocks[f.ID] = f
	return f, nil
}

func (r *memoryRepo) UpdateFlock(ctx context.Context, id int64, input FlockInput, placed time.Time) (Flock, error) {
	f, ok := r.flocks[id]
	if !ok {
		return Flock{}, ErrFlockNotFound
	}
	f.Breed = input.Breed
	f.BirdCount = input.BirdCount
	f.PlacedDate = placed
	r.flocks[id] = f
	return f, nil
}

func (r *memoryRepo) DeleteFlock(ctx context.Context, id int64) error {
	if _, ok := r.flocks[id]; !ok {
		return ErrFlockNotFound
	}
	delete(r.flocks, id)
	return nil
}

func (r *memoryRepo) Summary(ctx context.Context, farmID int64) (Summary, error) {
	farm, err := r.GetFarm(ctx, farmID)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Farm: farm, ExpenseAFG: decimal.Zero}
	for _, shed := range r.sheds {
		if shed.FarmID == farmID && shed.DeletedAt == nil {
			s.ShedCount++
			s.Capacity += shed.Capacity
			for _, f := range r.flocks {
				if f.ShedID == shed.ID {
					s.BirdCount += f.BirdCount
				}
			}
		}
	}
	return s, nil
}

func TestFarmLimitEnforced(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	for i := 0; i < MaxFarms; i++ {
		_, err := svc.CreateFarm(ctx, FarmInput{Name: "farm"})
		require.NoError(t, err)
	}
	_, err := svc.CreateFarm(ctx, FarmInput{Name: "one too many"})
	require.ErrorIs(t, err, ErrFarmLimit)
	require.ErrorIs(t, err, shared.ErrInvariant)
}

func TestDeleteFarmRefusedWithSheds(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	farm, err := svc.CreateFarm(ctx, FarmInput{Name: "main"})
	require.NoError(t, err)
	shed, err := svc.CreateShed(ctx, ShedInput{FarmID: farm.ID, Name: "A", Capacity: 2000})
	require.NoError(t, err)

	err = svc.DeleteFarm(ctx, farm.ID)
	require.ErrorIs(t, err, shared.ErrInvariant)

	require.NoError(t, svc.DeleteShed(ctx, shed.ID))
	require.NoError(t, svc.DeleteFarm(ctx, farm.ID))

	// A deleted farm frees its slot in the limit.
	n, err := repo.CountFarms(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteShedRefusedWithFlocks(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	farm, err := svc.CreateFarm(ctx, FarmInput{Name: "main"})
	require.NoError(t, err)
	shed, err := svc.CreateShed(ctx, ShedInput{FarmID: farm.ID, Name: "B", Capacity: 1500})
	require.NoError(t, err)
	flock, err := svc.CreateFlock(ctx, FlockInput{ShedID: shed.ID, Breed: "Hy-Line", BirdCount: 1200, PlacedDate: "2025-05-01"})
	require.NoError(t, err)

	err = svc.DeleteShed(ctx, shed.ID)
	require.ErrorIs(t, err, shared.ErrInvariant)

	require.NoError(t, svc.DeleteFlock(ctx, flock.ID))
	require.NoError(t, svc.DeleteShed(ctx, shed.ID))
}

func TestCreateFlockValidatesDateAndShed(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.CreateFlock(ctx, FlockInput{ShedID: 1, Breed: "Lohmann", BirdCount: 500, PlacedDate: "05/01/2025"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateFlock(ctx, FlockInput{ShedID: 99, Breed: "Lohmann", BirdCount: 500, PlacedDate: "2025-05-01"})
	require.ErrorIs(t, err, ErrShedNotFound)
}
