package production

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/farmledger/farmledger/internal/farm"
	"github.com/farmledger/farmledger/internal/inventory"
	"github.com/farmledger/farmledger/internal/shared"
)

// InventoryEngine is the slice of the inventory service feed issues drive.
type InventoryEngine interface {
	ApplyMovementTx(ctx context.Context, tx inventory.TxRepository, input inventory.ApplyMovementInput) (inventory.StockMovement, error)
}

// ShedPort resolves sheds; satisfied by the farm service.
type ShedPort interface {
	GetShed(ctx context.Context, id int64) (farm.Shed, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records daily egg production and feed issues. Egg records mutate
// freely; feed issues consume stock and void by reversing movement.
type Service struct {
	repo      Repository
	inventory InventoryEngine
	sheds     ShedPort
	audit     AuditPort
}

// NewService builds Service.
func NewService(repo Repository, inventoryEngine InventoryEngine, sheds ShedPort, audit AuditPort) *Service {
	return &Service{repo: repo, inventory: inventoryEngine, sheds: sheds, audit: audit}
}

// CreateRecord stores one shed's egg counts for a day.
func (s *Service) CreateRecord(ctx context.Context, input EggInput) (EggRecord, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return EggRecord{}, err
	}
	day, err := parseDay(input.ProducedOn)
	if err != nil {
		return EggRecord{}, err
	}
	if s.sheds != nil {
		if _, err := s.sheds.GetShed(ctx, input.ShedID); err != nil {
			return EggRecord{}, err
		}
	}
	return s.repo.CreateRecord(ctx, input, day)
}

// UpdateRecord replaces a record's counts and day.
func (s *Service) UpdateRecord(ctx context.Context, id int64, input EggInput) (EggRecord, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return EggRecord{}, err
	}
	day, err := parseDay(input.ProducedOn)
	if err != nil {
		return EggRecord{}, err
	}
	return s.repo.UpdateRecord(ctx, id, input, day)
}

// DeleteRecord removes a record.
func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	return s.repo.DeleteRecord(ctx, id)
}

// GetRecord loads one record.
func (s *Service) GetRecord(ctx context.Context, id int64) (EggRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

// ListRecords lists a shed's records over a day range.
func (s *Service) ListRecords(ctx context.Context, filter EggRangeFilter) ([]EggRecord, error) {
	if filter.ShedID == 0 {
		return nil, shared.Validationf("production: shed id required")
	}
	if filter.To.IsZero() {
		filter.To = time.Now().UTC()
	}
	return s.repo.ListRecords(ctx, filter)
}

// IssueFeed takes feed out of stock for a shed. The issue row and the stock
// movement commit in one transaction; insufficient stock fails the whole
// issue.
func (s *Service) IssueFeed(ctx context.Context, input FeedIssueInput) (FeedIssue, error) {
	if input.ShedID == 0 || input.ItemID == 0 {
		return FeedIssue{}, shared.Validationf("production: shed and item required")
	}
	if !input.Quantity.IsPositive() {
		return FeedIssue{}, shared.Validationf("production: quantity must be positive")
	}
	if input.EventID == uuid.Nil {
		input.EventID = uuid.New()
	}
	if input.IssuedOn.IsZero() {
		input.IssuedOn = time.Now().UTC()
	} else {
		input.IssuedOn = input.IssuedOn.UTC()
	}
	if s.sheds != nil {
		if _, err := s.sheds.GetShed(ctx, input.ShedID); err != nil {
			return FeedIssue{}, err
		}
	}

	var issue FeedIssue
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx FeedTx) error {
		movement, err := s.inventory.ApplyMovementTx(ctx, tx.Inventory(), inventory.ApplyMovementInput{
			ItemID:        input.ItemID,
			Delta:         input.Quantity.Neg(),
			ReferenceKind: inventory.MovementFeedIssue,
			ReferenceID:   input.EventID.String(),
			OccurredAt:    input.IssuedOn,
			Note:          input.Note,
		})
		if err != nil {
			return err
		}
		issue = FeedIssue{
			EventID:    input.EventID,
			ShedID:     input.ShedID,
			ItemID:     input.ItemID,
			Quantity:   input.Quantity,
			IssuedOn:   input.IssuedOn,
			MovementID: movement.ID,
			Note:       input.Note,
		}
		id, err := tx.InsertIssue(ctx, issue)
		if err != nil {
			return err
		}
		issue.ID = id
		return nil
	})
	if err != nil {
		return FeedIssue{}, err
	}
	s.recordAudit(ctx, "production:feed_issue", issue.ID)
	return issue, nil
}

// VoidIssue reverses a feed issue: the quantity returns to stock and the
// issue is marked voided. The original row stays for the record.
func (s *Service) VoidIssue(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx FeedTx) error {
		issue, err := tx.GetIssueForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if issue.VoidedAt != nil {
			return ErrIssueVoided
		}
		_, err = s.inventory.ApplyMovementTx(ctx, tx.Inventory(), inventory.ApplyMovementInput{
			ItemID:        issue.ItemID,
			Delta:         issue.Quantity,
			ReferenceKind: inventory.MovementAdjustment,
			ReferenceID:   issue.EventID.String(),
			OccurredAt:    now,
			Note:          "void feed issue " + strconv.FormatInt(issue.ID, 10),
		})
		if err != nil {
			return err
		}
		return tx.MarkIssueVoided(ctx, id, now)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "production:feed_issue:void", id)
	return nil
}

// GetIssue loads one feed issue.
func (s *Service) GetIssue(ctx context.Context, id int64) (FeedIssue, error) {
	return s.repo.GetIssue(ctx, id)
}

// ListIssues lists a shed's feed issues over a range.
func (s *Service) ListIssues(ctx context.Context, shedID int64, from, to time.Time) ([]FeedIssue, error) {
	if shedID == 0 {
		return nil, shared.Validationf("production: shed id required")
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return s.repo.ListIssues(ctx, shedID, from, to)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "feed_issue",
		EntityID: strconv.FormatInt(id, 10),
	})
}

func parseDay(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Validationf("production: bad date %q, want YYYY-MM-DD", raw)
	}
	return t.UTC(), nil
}
