package farm

import (
	"context"
	"strconv"
	"time"

	"github.com/farmledger/farmledger/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages farms, sheds and flocks. Farms and sheds are referenced by
// production rows and expenses, so they soft delete; flocks have no financial
// trail and delete directly.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateFarm registers a farm, refusing once MaxFarms live farms exist.
func (s *Service) CreateFarm(ctx context.Context, input FarmInput) (Farm, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Farm{}, err
	}
	n, err := s.repo.CountFarms(ctx)
	if err != nil {
		return Farm{}, err
	}
	if n >= MaxFarms {
		return Farm{}, ErrFarmLimit
	}
	farm, err := s.repo.CreateFarm(ctx, input)
	if err != nil {
		return Farm{}, err
	}
	s.recordAudit(ctx, "farm:create", "farm", farm.ID)
	return farm, nil
}

// UpdateFarm changes farm fields.
func (s *Service) UpdateFarm(ctx context.Context, id int64, input FarmInput) (Farm, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Farm{}, err
	}
	return s.repo.UpdateFarm(ctx, id, input)
}

// DeleteFarm soft-deletes a farm and is refused while live sheds remain.
func (s *Service) DeleteFarm(ctx context.Context, id int64) error {
	sheds, err := s.repo.ListSheds(ctx, id)
	if err != nil {
		return err
	}
	if len(sheds) > 0 {
		return shared.Invariantf("farm: %d still has %d sheds", id, len(sheds))
	}
	if err := s.repo.SoftDeleteFarm(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "farm:delete", "farm", id)
	return nil
}

// GetFarm loads one live farm.
func (s *Service) GetFarm(ctx context.Context, id int64) (Farm, error) {
	return s.repo.GetFarm(ctx, id)
}

// ListFarms lists live farms by name.
func (s *Service) ListFarms(ctx context.Context) ([]Farm, error) {
	return s.repo.ListFarms(ctx)
}

// FarmSummary aggregates sheds, birds and expenses for one farm.
func (s *Service) FarmSummary(ctx context.Context, id int64) (Summary, error) {
	return s.repo.Summary(ctx, id)
}

// CreateShed adds a shed to a farm.
func (s *Service) CreateShed(ctx context.Context, input ShedInput) (Shed, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Shed{}, err
	}
	if _, err := s.repo.GetFarm(ctx, input.FarmID); err != nil {
		return Shed{}, err
	}
	shed, err := s.repo.CreateShed(ctx, input)
	if err != nil {
		return Shed{}, err
	}
	s.recordAudit(ctx, "farm:shed:create", "shed", shed.ID)
	return shed, nil
}

// UpdateShed changes shed fields.
func (s *Service) UpdateShed(ctx context.Context, id int64, input ShedInput) (Shed, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Shed{}, err
	}
	return s.repo.UpdateShed(ctx, id, input)
}

// DeleteShed soft-deletes a shed and is refused while flocks remain.
func (s *Service) DeleteShed(ctx context.Context, id int64) error {
	flocks, err := s.repo.ListFlocks(ctx, id)
	if err != nil {
		return err
	}
	if len(flocks) > 0 {
		return shared.Invariantf("farm: shed %d still has %d flocks", id, len(flocks))
	}
	if err := s.repo.SoftDeleteShed(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "farm:shed:delete", "shed", id)
	return nil
}

// GetShed loads one live shed.
func (s *Service) GetShed(ctx context.Context, id int64) (Shed, error) {
	return s.repo.GetShed(ctx, id)
}

// ListSheds lists a farm's live sheds.
func (s *Service) ListSheds(ctx context.Context, farmID int64) ([]Shed, error) {
	return s.repo.ListSheds(ctx, farmID)
}

// CreateFlock places a flock in a shed.
func (s *Service) CreateFlock(ctx context.Context, input FlockInput) (Flock, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Flock{}, err
	}
	placed, err := parseDate(input.PlacedDate)
	if err != nil {
		return Flock{}, err
	}
	if _, err := s.repo.GetShed(ctx, input.ShedID); err != nil {
		return Flock{}, err
	}
	return s.repo.CreateFlock(ctx, input, placed)
}

// UpdateFlock changes flock fields.
func (s *Service) UpdateFlock(ctx context.Context, id int64, input FlockInput) (Flock, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Flock{}, err
	}
	placed, err := parseDate(input.PlacedDate)
	if err != nil {
		return Flock{}, err
	}
	return s.repo.UpdateFlock(ctx, id, input, placed)
}

// DeleteFlock removes a flock.
func (s *Service) DeleteFlock(ctx context.Context, id int64) error {
	return s.repo.DeleteFlock(ctx, id)
}

// ListFlocks lists a shed's flocks, newest placement first.
func (s *Service) ListFlocks(ctx context.Context, shedID int64) ([]Flock, error) {
	return s.repo.ListFlocks(ctx, shedID)
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
	})
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Validationf("farm: bad date %q, want YYYY-MM-DD", raw)
	}
	return t.UTC(), nil
}
