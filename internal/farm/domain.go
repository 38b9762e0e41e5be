package farm

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// MaxFarms caps the number of live farms a single operation can register.
const MaxFarms = 4

// ErrFarmNotFound indicates the farm does not exist or was soft deleted.
var ErrFarmNotFound = fmt.Errorf("farm: not found: %w", shared.ErrNotFound)

// ErrShedNotFound indicates the shed does not exist or was soft deleted.
var ErrShedNotFound = fmt.Errorf("farm: shed not found: %w", shared.ErrNotFound)

// ErrFlockNotFound indicates the flock does not exist.
var ErrFlockNotFound = fmt.Errorf("farm: flock not found: %w", shared.ErrNotFound)

// ErrFarmLimit rejects creating more than MaxFarms live farms.
var ErrFarmLimit = fmt.Errorf("farm: limit of %d farms reached: %w", MaxFarms, shared.ErrInvariant)

// Farm is one physical site.
type Farm struct {
	ID        int64
	Name      string
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Shed is a house within a farm. Capacity is the bird count it can hold.
type Shed struct {
	ID        int64
	FarmID    int64
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Flock is a batch of birds placed in a shed.
type Flock struct {
	ID         int64
	ShedID     int64
	Breed      string
	BirdCount  int
	PlacedDate time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FarmInput carries the fields for creating or updating a farm.
type FarmInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Location string `json:"location" validate:"omitempty,max=240"`
}

// ShedInput carries the fields for creating or updating a shed.
type ShedInput struct {
	FarmID   int64  `json:"farm_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=120"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

// FlockInput carries the fields for creating or updating a flock.
type FlockInput struct {
	ShedID     int64  `json:"shed_id" validate:"required"`
	Breed      string `json:"breed" validate:"required,max=120"`
	BirdCount  int    `json:"bird_count" validate:"gt=0"`
	PlacedDate string `json:"placed_date" validate:"required"`
}

// Summary aggregates one farm for the overview screen.
type Summary struct {
	Farm         Farm
	ShedCount    int
	Capacity     int
	BirdCount    int
	ExpenseAFG   decimal.Decimal
	ExpenseCount int
}
