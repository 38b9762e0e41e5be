package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmledger/farmledger/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memoryRepo struct {
	items     map[int64]StockItem
	movements []StockMovement
	nextItem  int64
	nextMove  int64
	txCalls   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]StockItem{}}
}

func (r *memoryRepo) addItem(name string, qty, threshold decimal.Decimal) StockItem {
	r.nextItem++
	item := StockItem{ID: r.nextItem, Name: name, Unit: "kg", QuantityOnHand: qty, ReorderThreshold: threshold}
	r.items[item.ID] = item
	if !qty.IsZero() {
		r.nextMove++
		r.movements = append(r.movements, StockMovement{ID: r.nextMove, ItemID: item.ID, Delta: qty, ReferenceKind: MovementAdjustment})
	}
	return item
}

type memoryTx struct {
	repo       *memoryRepo
	movements  []StockMovement
	quantities map[int64]decimal.Decimal
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txCalls++
	tx := &memoryTx{repo: r, quantities: map[int64]decimal.Decimal{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.movements = append(r.movements, tx.movements...)
	for id, qty := range tx.quantities {
		item := r.items[id]
		item.QuantityOnHand = qty
		r.items[id] = item
	}
	return nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	item, ok := tx.repo.items[id]
	if !ok || item.DeletedAt != nil {
		return StockItem{}, ErrItemNotFound
	}
	return item, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, input ApplyMovementInput) (int64, error) {
	tx.repo.nextMove++
	tx.movements = append(tx.movements, StockMovement{
		ID:            tx.repo.nextMove,
		ItemID:        input.ItemID,
		Delta:         input.Delta,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
		OccurredAt:    input.OccurredAt,
	})
	return tx.repo.nextMove, nil
}

func (tx *memoryTx) SetQuantity(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	tx.quantities[itemID] = qty
	return nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (StockItem, error) {
	item, ok := r.items[id]
	if !ok || item.DeletedAt != nil {
		return StockItem{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context) ([]StockItem, error) {
	var out []StockItem
	for _, item := range r.items {
		if item.DeletedAt == nil {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryRepo) LowStockItems(ctx context.Context) ([]StockItem, error) {
	items, _ := r.ListItems(ctx)
	var out []StockItem
	for _, item := range items {
		if item.LowStock() {
			out = append(out, item)
		}
	}
	// most depleted first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			di := out[i].QuantityOnHand.Sub(out[i].ReorderThreshold)
			dj := out[j].QuantityOnHand.Sub(out[j].ReorderThreshold)
			if dj.LessThan(di) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter ListMovementsFilter) ([]StockMovement, error) {
	var out []StockMovement
	for _, m := range r.movements {
		if m.ItemID == filter.ItemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListQuantityDrift(ctx context.Context) ([]QuantityDrift, error) {
	var drifts []QuantityDrift
	for _, item := range r.items {
		if item.DeletedAt != nil {
			continue
		}
		sum := decimal.Zero
		for _, m := range r.movements {
			if m.ItemID == item.ID {
				sum = sum.Add(m.Delta)
			}
		}
		if !sum.Equal(item.QuantityOnHand) {
			drifts = append(drifts, QuantityDrift{ItemID: item.ID, Name: item.Name, OnHand: item.QuantityOnHand, Replayed: sum})
		}
	}
	return drifts, nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, input CreateItemInput, threshold, opening decimal.Decimal) (StockItem, error) {
	return r.addItem(input.Name, opening, threshold), nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, id int64, input UpdateItemInput, threshold decimal.Decimal) (StockItem, error) {
	item, ok := r.items[id]
	if !ok || item.DeletedAt != nil {
		return StockItem{}, ErrItemNotFound
	}
	item.Name = input.Name
	item.Unit = input.Unit
	item.ReorderThreshold = threshold
	r.items[id] = item
	return item, nil
}

func (r *memoryRepo) SoftDeleteItem(ctx context.Context, id int64) error {
	item, ok := r.items[id]
	if !ok || item.DeletedAt != nil {
		return ErrItemNotFound
	}
	now := item.CreatedAt
	item.DeletedAt = &now
	r.items[id] = item
	return nil
}

func TestApplyMovementRejectsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem("layer feed", dec("30"), dec("10"))
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, ApplyMovementInput{
		ItemID:        item.ID,
		Delta:         dec("-50"),
		ReferenceKind: MovementPurchase,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.ErrorIs(t, err, shared.ErrInvariant)

	// Quantity unchanged and no movement recorded.
	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, got.QuantityOnHand.Equal(dec("30")))
	moves, err := repo.ListMovements(ctx, ListMovementsFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, moves, 1)
}

func TestApplyMovementBackorderOverride(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem("starter feed", dec("10"), dec("5"))
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	m, err := svc.ApplyMovement(ctx, ApplyMovementInput{
		ItemID:        item.ID,
		Delta:         dec("-25"),
		ReferenceKind: MovementAdjustment,
		Backorder:     true,
	})
	require.NoError(t, err)
	require.True(t, m.Delta.Equal(dec("-25")))

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, got.QuantityOnHand.Equal(dec("-15")))
}

func TestApplyMovementRejectsZeroDeltaAndUnknownItem(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem("grit", dec("5"), dec("1"))
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, ApplyMovementInput{ItemID: item.ID, Delta: decimal.Zero, ReferenceKind: MovementAdjustment})
	require.ErrorIs(t, err, ErrZeroDelta)

	_, err = svc.ApplyMovement(ctx, ApplyMovementInput{ItemID: 99, Delta: dec("1"), ReferenceKind: MovementAdjustment})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestQuantityMatchesMovementSum(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem("maize", dec("100"), dec("20"))
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	deltas := []string{"-12.5", "40", "-30", "-7.25", "15"}
	for _, d := range deltas {
		_, err := svc.ApplyMovement(ctx, ApplyMovementInput{
			ItemID:        item.ID,
			Delta:         dec(d),
			ReferenceKind: MovementAdjustment,
		})
		require.NoError(t, err)
	}

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, got.QuantityOnHand.Equal(dec("105.25")))

	drifts, err := svc.CheckQuantityIntegrity(ctx)
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestLowStockOrdering(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem("plenty", dec("100"), dec("10"))
	worst := repo.addItem("empty", dec("0"), dec("50"))
	mid := repo.addItem("low", dec("8"), dec("10"))
	svc := NewService(repo, nil, ServiceConfig{})

	items, err := svc.LowStockItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, worst.ID, items[0].ID)
	require.Equal(t, mid.ID, items[1].ID)
}

func TestDeleteItemRefusedWhileStockHeld(t *testing.T) {
	repo := newMemoryRepo()
	held := repo.addItem("held", dec("3"), dec("1"))
	empty := repo.addItem("spent", dec("0"), dec("1"))
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	err := svc.DeleteItem(ctx, held.ID)
	require.ErrorIs(t, err, shared.ErrInvariant)

	require.NoError(t, svc.DeleteItem(ctx, empty.ID))
	_, err = svc.GetItem(ctx, empty.ID)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestCreateItemWithOpeningQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{Name: "wheat bran", Unit: "kg", ReorderThreshold: "25", OpeningQuantity: "60"})
	require.NoError(t, err)
	require.True(t, item.QuantityOnHand.Equal(dec("60")))

	moves, err := repo.ListMovements(ctx, ListMovementsFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, moves, 1)
	require.Equal(t, MovementAdjustment, moves[0].ReferenceKind)

	// The opening movement rides the create call, not a second transaction.
	require.Zero(t, repo.txCalls)
}
