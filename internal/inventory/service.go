package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AllowBackorder permits every movement to drive quantity below zero,
	// regardless of the per-movement flag. Off in production.
	AllowBackorder bool
}

// Service maintains stock-item quantities through an append-only movement
// history. Quantity on hand is only ever changed alongside a movement row.
type Service struct {
	repo  Repository
	audit AuditPort
	cfg   ServiceConfig
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, cfg: cfg}
}

// ApplyMovement applies one quantity change in its own transaction.
func (s *Service) ApplyMovement(ctx context.Context, input ApplyMovementInput) (StockMovement, error) {
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := s.ApplyMovementTx(ctx, tx, input)
		if err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		return StockMovement{}, err
	}
	s.recordAudit(ctx, movement)
	return movement, nil
}

// ApplyMovementTx applies one quantity change on the caller's transaction.
// The posting coordinator and the feed-issue service use this to commit the
// stock effect together with their own writes.
func (s *Service) ApplyMovementTx(ctx context.Context, tx TxRepository, input ApplyMovementInput) (StockMovement, error) {
	if input.ItemID == 0 {
		return StockMovement{}, shared.Validationf("inventory: item id required")
	}
	if input.Delta.IsZero() {
		return StockMovement{}, ErrZeroDelta
	}
	if !input.ReferenceKind.Valid() {
		return StockMovement{}, shared.Validationf("inventory: unknown reference kind %q", input.ReferenceKind)
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = time.Now().UTC()
	} else {
		input.OccurredAt = input.OccurredAt.UTC()
	}

	// Row lock orders concurrent movements on the same item.
	item, err := tx.GetItemForUpdate(ctx, input.ItemID)
	if err != nil {
		return StockMovement{}, err
	}

	newQty := item.QuantityOnHand.Add(input.Delta)
	if newQty.IsNegative() && !input.Backorder && !s.cfg.AllowBackorder {
		return StockMovement{}, ErrInsufficientStock
	}

	id, err := tx.InsertMovement(ctx, input)
	if err != nil {
		return StockMovement{}, err
	}
	if err := tx.SetQuantity(ctx, input.ItemID, newQty); err != nil {
		return StockMovement{}, err
	}

	return StockMovement{
		ID:            id,
		ItemID:        input.ItemID,
		Delta:         input.Delta,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
		Note:          input.Note,
		OccurredAt:    input.OccurredAt,
	}, nil
}

// CreateItem registers a new stock item. A non-zero opening quantity is
// recorded as an adjustment movement committed together with the item row.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (StockItem, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return StockItem{}, err
	}
	threshold, err := parseAmount(input.ReorderThreshold, "reorder threshold")
	if err != nil {
		return StockItem{}, err
	}
	opening, err := parseAmount(input.OpeningQuantity, "opening quantity")
	if err != nil {
		return StockItem{}, err
	}
	if threshold.IsNegative() || opening.IsNegative() {
		return StockItem{}, shared.Invariantf("inventory: quantities must be non-negative")
	}

	item, err := s.repo.CreateItem(ctx, input, threshold, opening)
	if err != nil {
		return StockItem{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory:create",
			Entity:   "stock_item",
			EntityID: strconv.FormatInt(item.ID, 10),
			Meta:     map[string]any{"opening": opening.String()},
		})
	}
	return item, nil
}

// UpdateItem changes name, unit and threshold. Quantity is untouchable here.
func (s *Service) UpdateItem(ctx context.Context, id int64, input UpdateItemInput) (StockItem, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return StockItem{}, err
	}
	threshold, err := parseAmount(input.ReorderThreshold, "reorder threshold")
	if err != nil {
		return StockItem{}, err
	}
	if threshold.IsNegative() {
		return StockItem{}, shared.Invariantf("inventory: reorder threshold must be non-negative")
	}
	return s.repo.UpdateItem(ctx, id, input, threshold)
}

// DeleteItem soft-deletes an item. Items still holding stock are refused so
// the on-hand total stays explained by movement history.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if !item.QuantityOnHand.IsZero() {
		return shared.Invariantf("inventory: item %d still holds %s %s", id, item.QuantityOnHand, item.Unit)
	}
	if err := s.repo.SoftDeleteItem(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory:delete",
			Entity:   "stock_item",
			EntityID: strconv.FormatInt(id, 10),
		})
	}
	return nil
}

// GetItem loads one live item.
func (s *Service) GetItem(ctx context.Context, id int64) (StockItem, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems lists live items by name.
func (s *Service) ListItems(ctx context.Context) ([]StockItem, error) {
	return s.repo.ListItems(ctx)
}

// LowStockItems returns items at or below their reorder threshold, most
// depleted first.
func (s *Service) LowStockItems(ctx context.Context) ([]StockItem, error) {
	return s.repo.LowStockItems(ctx)
}

// ListMovements lists an item's movement history in occurrence order.
func (s *Service) ListMovements(ctx context.Context, filter ListMovementsFilter) ([]StockMovement, error) {
	if filter.ItemID == 0 {
		return nil, shared.Validationf("inventory: item id required")
	}
	return s.repo.ListMovements(ctx, filter)
}

// CheckQuantityIntegrity compares every on-hand quantity against the sum of
// the item's movement deltas and returns the rows that diverged.
func (s *Service) CheckQuantityIntegrity(ctx context.Context) ([]QuantityDrift, error) {
	return s.repo.ListQuantityDrift(ctx)
}

func (s *Service) recordAudit(ctx context.Context, m StockMovement) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   "inventory:move",
		Entity:   "stock_movement",
		EntityID: strconv.FormatInt(m.ID, 10),
		Meta: map[string]any{
			"item_id":        m.ItemID,
			"delta":          m.Delta.String(),
			"reference_kind": string(m.ReferenceKind),
			"reference_id":   m.ReferenceID,
		},
	})
}

func parseAmount(s, label string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.Validationf("inventory: bad %s %q", label, s)
	}
	return d, nil
}
