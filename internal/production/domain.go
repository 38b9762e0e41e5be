package production

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// ErrRecordNotFound indicates the production record does not exist.
var ErrRecordNotFound = fmt.Errorf("production: record not found: %w", shared.ErrNotFound)

// ErrIssueNotFound indicates the feed issue does not exist.
var ErrIssueNotFound = fmt.Errorf("production: feed issue not found: %w", shared.ErrNotFound)

// ErrIssueVoided indicates the feed issue was voided before.
var ErrIssueVoided = fmt.Errorf("production: feed issue already voided: %w", shared.ErrInvariant)

// ErrDuplicateDay rejects a second production record for the same shed and
// day; the existing record should be updated instead.
var ErrDuplicateDay = fmt.Errorf("production: record for shed and day exists: %w", shared.ErrConflict)

// EggRecord is one shed's egg count for one UTC day. Eggs have no ledger or
// stock consequence, so records update and delete in place.
type EggRecord struct {
	ID         int64
	ShedID     int64
	ProducedOn time.Time
	Small      int
	Medium     int
	Large      int
	Broken     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Total counts every egg in the record, broken included.
func (r EggRecord) Total() int {
	return r.Small + r.Medium + r.Large + r.Broken
}

// EggInput carries the fields for creating or updating a record.
type EggInput struct {
	ShedID     int64  `json:"shed_id" validate:"required"`
	ProducedOn string `json:"produced_on" validate:"required"`
	Small      int    `json:"small" validate:"gte=0"`
	Medium     int    `json:"medium" validate:"gte=0"`
	Large      int    `json:"large" validate:"gte=0"`
	Broken     int    `json:"broken" validate:"gte=0"`
}

// EggRangeFilter selects records for a shed over a day range.
type EggRangeFilter struct {
	ShedID int64
	From   time.Time
	To     time.Time
}

// FeedIssue records feed taken from stock for one shed. The stock movement
// commits in the same transaction as this row.
type FeedIssue struct {
	ID         int64
	EventID    uuid.UUID
	ShedID     int64
	ItemID     int64
	Quantity   decimal.Decimal
	IssuedOn   time.Time
	MovementID int64
	Note       string
	VoidedAt   *time.Time
	CreatedAt  time.Time
}

// FeedIssueInput carries the fields for issuing feed.
type FeedIssueInput struct {
	EventID  uuid.UUID
	ShedID   int64
	ItemID   int64
	Quantity decimal.Decimal
	IssuedOn time.Time
	Note     string
}
