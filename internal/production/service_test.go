package production

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmledger/farmledger/internal/farm"
	"github.com/farmledger/farmledger/internal/inventory"
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
	records   map[int64]EggRecord
	issues    map[int64]FeedIssue
	items     map[int64]inventory.StockItem
	movements []inventory.StockMovement
	nextRec   int64
	nextIssue int64
	nextMove  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[int64]EggRecord{}, issues: map[int64]FeedIssue{}, items: map[int64]inventory.StockItem{}}
}

func (r *memoryRepo) addItem(id int64, qty string) {
	r.items[id] = inventory.StockItem{ID: id, Name: "feed", Unit: "kg", QuantityOnHand: dec(qty)}
}

func (r *memoryRepo) GetRecord(ctx context.Context, id int64) (EggRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return EggRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepo) ListRecords(ctx context.Context, filter EggRangeFilter) ([]EggRecord, error) {
	var out []EggRecord
	for _, rec := range r.records {
		if rec.ShedID == filter.ShedID && !rec.ProducedOn.Before(filter.From) && !rec.ProducedOn.After(filter.To) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateRecord(ctx context.Context, input EggInput, day time.Time) (EggRecord, error) {
	for _, rec := range r.records {
		if rec.ShedID == input.ShedID && rec.ProducedOn.Equal(day) {
			return EggRecord{}, ErrDuplicateDay
		}
	}
	r.nextRec++
	rec := EggRecord{
		ID: r.nextRec, ShedID: input.ShedID, ProducedOn: day,
		Small: input.Small, Medium: input.Medium, Large: input.Large, Broken: input.Broken,
	}
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepo) UpdateRecord(ctx context.Context, id int64, input EggInput, day time.Time) (EggRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return EggRecord{}, ErrRecordNotFound
	}
	rec.ProducedOn = day
	rec.Small, rec.Medium, rec.Large, rec.Broken = input.Small, input.Medium, input.Large, input.Broken
	r.records[id] = rec
	return rec, nil
}

func (r *memoryRepo) DeleteRecord(ctx context.Context, id int64) error {
	if _, ok := r.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) GetIssue(ctx context.Context, id int64) (FeedIssue, error) {
	issue, ok := r.issues[id]
	if !ok {
		return FeedIssue{}, ErrIssueNotFound
	}
	return issue, nil
}

func (r *memoryRepo) ListIssues(ctx context.Context, shedID int64, from, to time.Time) ([]FeedIssue, error) {
	var out []FeedIssue
	for _, issue := range r.issues {
		if issue.ShedID == shedID && !issue.IssuedOn.Before(from) && !issue.IssuedOn.After(to) {
			out = append(out, issue)
		}
	}
	return out, nil
}

type memoryFeedTx struct {
	repo      *memoryRepo
	issues    []FeedIssue
	movements []inventory.StockMovement
	qty       map[int64]decimal.Decimal
	voids     map[int64]time.Time
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, FeedTx) error) error {
	tx := &memoryFeedTx{repo: r, qty: map[int64]decimal.Decimal{}, voids: map[int64]time.Time{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for i := range tx.issues {
		r.issues[tx.issues[i].ID] = tx.issues[i]
	}
	r.movements = append(r.movements, tx.movements...)
	for id, q := range tx.qty {
		item := r.items[id]
		item.QuantityOnHand = q
		r.items[id] = item
	}
	for id, at := range tx.voids {
		issue := r.issues[id]
		t := at
		issue.VoidedAt = &t
		r.issues[id] = issue
	}
	return nil
}

func (t *memoryFeedTx) Inventory() inventory.TxRepository { return (*memoryInvTx)(t) }

func (t *memoryFeedTx) InsertIssue(ctx context.Context, issue FeedIssue) (int64, error) {
	t.repo.nextIssue++
	issue.ID = t.repo.nextIssue
	t.issues = append(t.issues, issue)
	return issue.ID, nil
}

func (t *memoryFeedTx) GetIssueForUpdate(ctx context.Context, id int64) (FeedIssue, error) {
	issue, ok := t.repo.issues[id]
	if !ok {
		return FeedIssue{}, ErrIssueNotFound
	}
	return issue, nil
}

func (t *memoryFeedTx) MarkIssueVoided(ctx context.Context, id int64, at time.Time) error {
	issue, ok := t.repo.issues[id]
	if !ok {
		return ErrIssueNotFound
	}
	if issue.VoidedAt != nil {
		return ErrIssueVoided
	}
	t.voids[id] = at
	return nil
}

type memoryInvTx memoryFeedTx

func (t *memoryInvTx) GetItemForUpdate(ctx context.Context, id int64) (inventory.StockItem, error) {
	item, ok := t.repo.items[id]
	if !ok {
		return inventory.StockItem{}, inventory.ErrItemNotFound
	}
	if q, ok := t.qty[id]; ok {
		item.QuantityOnHand = q
	}
	return item, nil
}

func (t *memoryInvTx) InsertMovement(ctx context.Context, input inventory.ApplyMovementInput) (int64, error) {
	t.repo.nextMove++
	t.movements = append(t.movements, inventory.StockMovement{
		ID:            t.repo.nextMove,
		ItemID:        input.ItemID,
		Delta:         input.Delta,
		ReferenceKind: input.ReferenceKind,
		ReferenceID:   input.ReferenceID,
		OccurredAt:    input.OccurredAt,
	})
	return t.repo.nextMove, nil
}

func (t *memoryInvTx) SetQuantity(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	t.qty[itemID] = qty
	return nil
}

type fakeSheds struct {
	sheds map[int64]bool
}

func (f *fakeSheds) GetShed(ctx context.Context, id int64) (farm.Shed, error) {
	if !f.sheds[id] {
		return farm.Shed{}, farm.ErrShedNotFound
	}
	return farm.Shed{ID: id}, nil
}

func newService(repo *memoryRepo, sheds ...int64) *Service {
	f := &fakeSheds{sheds: map[int64]bool{}}
	for _, id := range sheds {
		f.sheds[id] = true
	}
	return NewService(repo, inventory.NewService(nil, nil, inventory.ServiceConfig{}), f, nil)
}

func TestCreateRecordRejectsDuplicateDay(t *testing.T) {
	svc := newService(newMemoryRepo(), 1)
	ctx := context.Background()

	input := EggInput{ShedID: 1, ProducedOn: "2025-06-10", Small: 40, Medium: 300, Large: 220, Broken: 12}
	rec, err := svc.CreateRecord(ctx, input)
	require.NoError(t, err)
	require.Equal(t, 572, rec.Total())

	_, err = svc.CreateRecord(ctx, input)
	require.ErrorIs(t, err, ErrDuplicateDay)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRecordUnknownShed(t *testing.T) {
	svc := newService(newMemoryRepo(), 1)
	_, err := svc.CreateRecord(context.Background(), EggInput{ShedID: 9, ProducedOn: "2025-06-10", Medium: 10})
	require.ErrorIs(t, err, farm.ErrShedNotFound)
}

func TestIssueFeedConsumesStockAtomically(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(7, "120")
	svc := newService(repo, 1)
	ctx := context.Background()

	issue, err := svc.IssueFeed(ctx, FeedIssueInput{ShedID: 1, ItemID: 7, Quantity: dec("45.5")})
	require.NoError(t, err)
	require.NotZero(t, issue.MovementID)
	require.True(t, repo.items[7].QuantityOnHand.Equal(dec("74.5")))
	require.Len(t, repo.movements, 1)
	require.Equal(t, inventory.MovementFeedIssue, repo.movements[0].ReferenceKind)
}

func TestIssueFeedInsufficientStockLeavesNothing(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(7, "10")
	svc := newService(repo, 1)

	_, err := svc.IssueFeed(context.Background(), FeedIssueInput{ShedID: 1, ItemID: 7, Quantity: dec("25")})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Empty(t, repo.issues)
	require.Empty(t, repo.movements)
	require.True(t, repo.items[7].QuantityOnHand.Equal(dec("10")))
}

func TestIssueHistoryReadable(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(7, "200")
	svc := newService(repo, 1)
	ctx := context.Background()

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	issue, err := svc.IssueFeed(ctx, FeedIssueInput{ShedID: 1, ItemID: 7, Quantity: dec("20"), IssuedOn: day})
	require.NoError(t, err)

	got, err := svc.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.True(t, got.Quantity.Equal(dec("20")))

	issues, err := svc.ListIssues(ctx, 1, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, issue.ID, issues[0].ID)

	_, err = svc.GetIssue(ctx, 99)
	require.ErrorIs(t, err, ErrIssueNotFound)
}

func TestVoidIssueRestoresStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(7, "100")
	svc := newService(repo, 1)
	ctx := context.Background()

	issue, err := svc.IssueFeed(ctx, FeedIssueInput{ShedID: 1, ItemID: 7, Quantity: dec("30")})
	require.NoError(t, err)
	require.True(t, repo.items[7].QuantityOnHand.Equal(dec("70")))

	require.NoError(t, svc.VoidIssue(ctx, issue.ID))
	require.True(t, repo.items[7].QuantityOnHand.Equal(dec("100")))

	err = svc.VoidIssue(ctx, issue.ID)
	require.ErrorIs(t, err, ErrIssueVoided)
	require.True(t, repo.items[7].QuantityOnHand.Equal(dec("100")))
}
