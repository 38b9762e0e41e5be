package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/inventory"
	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/shared"
)

// LedgerEngine is the slice of the ledger service the coordinator drives.
type LedgerEngine interface {
	PostEntryTx(ctx context.Context, tx ledger.TxRepository, input ledger.PostEntryInput) (ledger.Entry, error)
}

// InventoryEngine is the slice of the inventory service the coordinator
// drives.
type InventoryEngine interface {
	ApplyMovementTx(ctx context.Context, tx inventory.TxRepository, input inventory.ApplyMovementInput) (inventory.StockMovement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posting outcomes.
type MetricsPort interface {
	EventPosted(kind string)
	PostingFailed(kind, reason string)
}

// Invalidator is notified after every successful commit so cached report
// projections get rebuilt.
type Invalidator interface {
	Bump(ctx context.Context)
}

// IdempotencyPort guards against double posting of a resubmitted event.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

// Coordinator is the single entry point for posting business events. It
// validates the event, computes the ledger and stock effects, and commits
// event row, ledger entry and stock movement through one unit of work. The
// engines never call each other; this is the only place they are coupled.
type Coordinator struct {
	uow         UnitOfWork
	ledger      LedgerEngine
	inventory   InventoryEngine
	idempotency IdempotencyPort
	audit       AuditPort
	metrics     MetricsPort
	invalidator Invalidator
}

// NewCoordinator builds Coordinator. audit, metrics, idempotency and
// invalidator may be nil.
func NewCoordinator(uow UnitOfWork, ledgerEngine LedgerEngine, inventoryEngine InventoryEngine,
	idempotency IdempotencyPort, audit AuditPort, metrics MetricsPort, invalidator Invalidator) *Coordinator {
	return &Coordinator{
		uow:         uow,
		ledger:      ledgerEngine,
		inventory:   inventoryEngine,
		idempotency: idempotency,
		audit:       audit,
		metrics:     metrics,
		invalidator: invalidator,
	}
}

// PostSale posts a sale: the party is credited qty×rate and the sold
// quantity is issued out of stock. Cash sales additionally post an
// offsetting debit so the books show the event without an open balance.
func (c *Coordinator) PostSale(ctx context.Context, input SaleInput) (Receipt, error) {
	if input.PartyID == 0 || input.ItemID == 0 {
		return Receipt{}, c.fail(EventSale, shared.Validationf("posting: party and item required"))
	}
	if !input.Quantity.IsPositive() {
		return Receipt{}, c.fail(EventSale, shared.Validationf("posting: quantity must be positive"))
	}
	if !input.Rate.IsPositive() {
		return Receipt{}, c.fail(EventSale, shared.Validationf("posting: rate must be positive"))
	}
	if !input.Currency.Valid() {
		return Receipt{}, c.fail(EventSale, shared.Validationf("posting: unknown currency %q", input.Currency))
	}
	eventID, occurredAt := eventDefaults(input.EventID, input.OccurredAt)
	total := input.Quantity.Mul(input.Rate).Round(2)

	release, err := c.reserve(ctx, EventSale, eventID)
	if err != nil {
		return Receipt{}, c.fail(EventSale, err)
	}

	var receipt Receipt
	err = c.uow.WithTx(ctx, func(ctx context.Context, tx TxSet) error {
		entry, err := c.ledger.PostEntryTx(ctx, tx.Ledger(), ledger.PostEntryInput{
			PartyID:       input.PartyID,
			PostedAt:      occurredAt,
			Movements:     ledger.Credit(input.Currency, total),
			ReferenceKind: ledger.RefSale,
			ReferenceID:   eventID.String(),
			Description:   input.Note,
		})
		if err != nil {
			return err
		}
		receipt.LedgerEntryIDs = append(receipt.LedgerEntryIDs, entry.ID)

		var offsetID int64
		if !input.OnAccount {
			offset, err := c.ledger.PostEntryTx(ctx, tx.Ledger(), ledger.PostEntryInput{
				PartyID:       input.PartyID,
				PostedAt:      occurredAt,
				Movements:     ledger.Debit(input.Currency, total),
				ReferenceKind: ledger.RefPayment,
				ReferenceID:   eventID.String(),
				Description:   "cash settlement",
			})
			if err != nil {
				return err
			}
			offsetID = offset.ID
			receipt.LedgerEntryIDs = append(receipt.LedgerEntryIDs, offset.ID)
		}

		movement, err := c.inventory.ApplyMovementTx(ctx, tx.Inventory(), inventory.ApplyMovementInput{
			ItemID:        input.ItemID,
			Delta:         input.Quantity.Neg(),
			ReferenceKind: inventory.MovementSale,
			ReferenceID:   eventID.String(),
			OccurredAt:    occurredAt,
		})
		if err != nil {
			return err
		}
		receipt.StockMovementID = movement.ID

		return tx.Events().InsertSale(ctx, SaleRecord{
			EventID:       eventID,
			PartyID:       input.PartyID,
			ItemID:        input.ItemID,
			Quantity:      input.Quantity,
			Rate:          input.Rate,
			Total:         total,
			Currency:      input.Currency,
			OnAccount:     input.OnAccount,
			EntryID:       entry.ID,
			OffsetEntryID: offsetID,
			MovementID:    movement.ID,
			OccurredAt:    occurredAt,
			Note:          input.Note,
		})
	})
	if err != nil {
		release(ctx)
		return Receipt{}, c.fail(EventSale, translate(err))
	}

	receipt.EventID = eventID
	receipt.Kind = EventSale
	receipt.PostedAt = occurredAt
	c.committed(ctx, receipt)
	return receipt, nil
}

// PostPurchase posts a purchase: the party is debited qty×rate and the
// quantity is issued out of stock. A purchase that would drive the item
// negative fails whole, leaving no ledger entry behind.
func (c *Coordinator) PostPurchase(ctx context.Context, input PurchaseInput) (Receipt, error) {
	if input.PartyID == 0 || input.ItemID == 0 {
		return Receipt{}, c.fail(EventPurchase, shared.Validationf("posting: party and item required"))
	}
	if !input.Quantity.IsPositive() {
		return Receipt{}, c.fail(EventPurchase, shared.Validationf("posting: quantity must be positive"))
	}
	if !input.Rate.IsPositive() {
		return Receipt{}, c.fail(EventPurchase, shared.Validationf("posting: rate must be positive"))
	}
	if !input.Currency.Valid() {
		return Receipt{}, c.fail(EventPurchase, shared.Validationf("posting: unknown currency %q", input.Currency))
	}
	eventID, occurredAt := eventDefaults(input.EventID, input.OccurredAt)
	total := input.Quantity.Mul(input.Rate).Round(2)

	release, err := c.reserve(ctx, EventPurchase, eventID)
	if err != nil {
		return Receipt{}, c.fail(EventPurchase, err)
	}

	var receipt Receipt
	err = c.uow.WithTx(ctx, func(ctx context.Context, tx TxSet) error {
		entry, err := c.ledger.PostEntryTx(ctx, tx.Ledger(), ledger.PostEntryInput{
			PartyID:       input.PartyID,
			PostedAt:      occurredAt,
			Movements:     ledger.Debit(input.Currency, total),
			ReferenceKind: ledger.RefPurchase,
			ReferenceID:   eventID.String(),
			Description:   input.Note,
		})
		if err != nil {
			return err
		}
		receipt.LedgerEntryIDs = []int64{entry.ID}

		movement, err := c.inventory.ApplyMovementTx(ctx, tx.Inventory(), inventory.ApplyMovementInput{
			ItemID:        input.ItemID,
			Delta:         input.Quantity.Neg(),
			ReferenceKind: inventory.MovementPurchase,
			ReferenceID:   eventID.String(),
			OccurredAt:    occurredAt,
			Backorder:     input.Backorder,
		})
		if err != nil {
			return err
		}
		receipt.StockMovementID = movement.ID

		return tx.Events().InsertPurchase(ctx, PurchaseRecord{
			EventID:    eventID,
			PartyID:    input.PartyID,
			ItemID:     input.ItemID,
			Quantity:   input.Quantity,
			Rate:       input.Rate,
			Total:      total,
			Currency:   input.Currency,
			EntryID:    entry.ID,
			MovementID: movement.ID,
			OccurredAt: occurredAt,
			Note:       input.Note,
		})
	})
	if err != nil {
		release(ctx)
		return Receipt{}, c.fail(EventPurchase, translate(err))
	}

	receipt.EventID = eventID
	receipt.Kind = EventPurchase
	receipt.PostedAt = occurredAt
	c.committed(ctx, receipt)
	return receipt, nil
}

// PostExpense posts an expense. With a party the amount is debited against
// it; without one only the expense row is recorded.
func (c *Coordinator) PostExpense(ctx context.Context, input ExpenseInput) (Receipt, error) {
	if !input.Category.Valid() {
		return Receipt{}, c.fail(EventExpense, shared.Validationf("posting: unknown expense category %q", input.Category))
	}
	if !input.Amount.IsPositive() {
		return Receipt{}, c.fail(EventExpense, shared.Validationf("posting: amount must be positive"))
	}
	if !input.Currency.Valid() {
		return Receipt{}, c.fail(EventExpense, shared.Validationf("posting: unknown currency %q", input.Currency))
	}
	eventID, occurredAt := eventDefaults(input.EventID, input.OccurredAt)

	release, err := c.reserve(ctx, EventExpense, eventID)
	if err != nil {
		return Receipt{}, c.fail(EventExpense, err)
	}

	var receipt Receipt
	err = c.uow.WithTx(ctx, func(ctx context.Context, tx TxSet) error {
		var entryID int64
		if input.PartyID != 0 {
			entry, err := c.ledger.PostEntryTx(ctx, tx.Ledger(), ledger.PostEntryInput{
				PartyID:       input.PartyID,
				PostedAt:      occurredAt,
				Movements:     ledger.Debit(input.Currency, input.Amount.Round(2)),
				ReferenceKind: ledger.RefExpense,
				ReferenceID:   eventID.String(),
				Description:   input.Note,
			})
			if err != nil {
				return err
			}
			entryID = entry.ID
			receipt.LedgerEntryIDs = []int64{entry.ID}
		}

		return tx.Events().InsertExpense(ctx, ExpenseRecord{
			EventID:    eventID,
			PartyID:    input.PartyID,
			FarmID:     input.FarmID,
			Category:   input.Category,
			Amount:     input.Amount.Round(2),
			Currency:   input.Currency,
			EntryID:    entryID,
			OccurredAt: occurredAt,
			Note:       input.Note,
		})
	})
	if err != nil {
		release(ctx)
		return Receipt{}, c.fail(EventExpense, translate(err))
	}

	receipt.EventID = eventID
	receipt.Kind = EventExpense
	receipt.PostedAt = occurredAt
	c.committed(ctx, receipt)
	return receipt, nil
}

// PostPayment posts a settlement. Money received from the party debits its
// balance; money paid out credits it.
func (c *Coordinator) PostPayment(ctx context.Context, input PaymentInput) (Receipt, error) {
	if input.PartyID == 0 {
		return Receipt{}, c.fail(EventPayment, shared.Validationf("posting: party required"))
	}
	if input.Direction != PaymentIn && input.Direction != PaymentOut {
		return Receipt{}, c.fail(EventPayment, shared.Validationf("posting: unknown payment direction %q", input.Direction))
	}
	if !input.Amount.IsPositive() {
		return Receipt{}, c.fail(EventPayment, shared.Validationf("posting: amount must be positive"))
	}
	if !input.Currency.Valid() {
		return Receipt{}, c.fail(EventPayment, shared.Validationf("posting: unknown currency %q", input.Currency))
	}
	eventID, occurredAt := eventDefaults(input.EventID, input.OccurredAt)
	amount := input.Amount.Round(2)

	release, err := c.reserve(ctx, EventPayment, eventID)
	if err != nil {
		return Receipt{}, c.fail(EventPayment, err)
	}

	movements := ledger.Debit(input.Currency, amount)
	if input.Direction == PaymentOut {
		movements = ledger.Credit(input.Currency, amount)
	}

	var receipt Receipt
	err = c.uow.WithTx(ctx, func(ctx context.Context, tx TxSet) error {
		entry, err := c.ledger.PostEntryTx(ctx, tx.Ledger(), ledger.PostEntryInput{
			PartyID:       input.PartyID,
			PostedAt:      occurredAt,
			Movements:     movements,
			ReferenceKind: ledger.RefPayment,
			ReferenceID:   eventID.String(),
			Description:   input.Note,
		})
		if err != nil {
			return err
		}
		receipt.LedgerEntryIDs = []int64{entry.ID}

		return tx.Events().InsertPayment(ctx, PaymentRecord{
			EventID:    eventID,
			PartyID:    input.PartyID,
			Direction:  input.Direction,
			Amount:     amount,
			Currency:   input.Currency,
			EntryID:    entry.ID,
			OccurredAt: occurredAt,
			Note:       input.Note,
		})
	})
	if err != nil {
		release(ctx)
		return Receipt{}, c.fail(EventPayment, translate(err))
	}

	receipt.EventID = eventID
	receipt.Kind = EventPayment
	receipt.PostedAt = occurredAt
	c.committed(ctx, receipt)
	return receipt, nil
}

// Void reverses a posted event: every ledger entry it produced is reversed
// by a new entry, consumed stock is restored, and the event row is marked
// voided. The original rows are never mutated beyond the void marker.
func (c *Coordinator) Void(ctx context.Context, kind EventKind, eventID uuid.UUID) (Receipt, error) {
	if !kind.Valid() {
		return Receipt{}, c.fail(kind, shared.Validationf("posting: unknown event kind %q", kind))
	}

	reversalID := uuid.New()
	now := time.Now().UTC()
	var receipt Receipt

	err := c.uow.WithTx(ctx, func(ctx context.Context, tx TxSet) error {
		var (
			entryIDs []int64
			itemID   int64
			restock  = decimal.Zero
		)
		switch kind {
		case EventSale:
			rec, err := tx.Events().GetSaleForUpdate(ctx, eventID)
			if err != nil {
				return err
			}
			if rec.VoidedAt != nil {
				return ErrAlreadyVoided
			}
			entryIDs = []int64{rec.EntryID}
			if rec.OffsetEntryID != 0 {
				entryIDs = append(entryIDs, rec.OffsetEntryID)
			}
			itemID = rec.ItemID
			restock = rec.Quantity
		case EventPurchase:
			rec, err := tx.Events().GetPurchaseForUpdate(ctx, eventID)
			if err != nil {
				return err
			}
			if rec.VoidedAt != nil {
				return ErrAlreadyVoided
			}
			entryIDs = []int64{rec.EntryID}
			itemID = rec.ItemID
			restock = rec.Quantity
		case EventExpense:
			rec, err := tx.Events().GetExpenseForUpdate(ctx, eventID)
			if err != nil {
				return err
			}
			if rec.VoidedAt != nil {
				return ErrAlreadyVoided
			}
			if rec.EntryID != 0 {
				entryIDs = []int64{rec.EntryID}
			}
		case EventPayment:
			rec, err := tx.Events().GetPaymentForUpdate(ctx, eventID)
			if err != nil {
				return err
			}
			if rec.VoidedAt != nil {
				return ErrAlreadyVoided
			}
			entryIDs = []int64{rec.EntryID}
		}

		for _, id := range entryIDs {
			original, err := tx.Ledger().GetEntry(ctx, id)
			if err != nil {
				return err
			}
			reversed, err := c.ledger.PostEntryTx(ctx, tx.Ledger(), ledger.PostEntryInput{
				PartyID:       original.PartyID,
				PostedAt:      now,
				Movements:     original.Movements.Reversed(),
				ReferenceKind: ledger.RefAdjustment,
				ReferenceID:   reversalID.String(),
				Description:   fmt.Sprintf("void %s %s", kind, eventID),
			})
			if err != nil {
				return err
			}
			receipt.LedgerEntryIDs = append(receipt.LedgerEntryIDs, reversed.ID)
		}

		if itemID != 0 {
			movement, err := c.inventory.ApplyMovementTx(ctx, tx.Inventory(), inventory.ApplyMovementInput{
				ItemID:        itemID,
				Delta:         restock,
				ReferenceKind: inventory.MovementAdjustment,
				ReferenceID:   reversalID.String(),
				OccurredAt:    now,
				Note:          fmt.Sprintf("void %s %s", kind, eventID),
			})
			if err != nil {
				return err
			}
			receipt.StockMovementID = movement.ID
		}

		return tx.Events().MarkVoided(ctx, kind, eventID, reversalID, now)
	})
	if err != nil {
		return Receipt{}, c.fail(kind, translate(err))
	}

	receipt.EventID = reversalID
	receipt.Kind = kind
	receipt.PostedAt = now
	c.committed(ctx, receipt)
	return receipt, nil
}

// GetSale loads one sale event.
func (c *Coordinator) GetSale(ctx context.Context, id uuid.UUID) (SaleRecord, error) {
	return c.uow.GetSale(ctx, id)
}

// GetPurchase loads one purchase event.
func (c *Coordinator) GetPurchase(ctx context.Context, id uuid.UUID) (PurchaseRecord, error) {
	return c.uow.GetPurchase(ctx, id)
}

// GetExpense loads one expense event.
func (c *Coordinator) GetExpense(ctx context.Context, id uuid.UUID) (ExpenseRecord, error) {
	return c.uow.GetExpense(ctx, id)
}

// GetPayment loads one payment event.
func (c *Coordinator) GetPayment(ctx context.Context, id uuid.UUID) (PaymentRecord, error) {
	return c.uow.GetPayment(ctx, id)
}

func eventDefaults(eventID uuid.UUID, occurredAt time.Time) (uuid.UUID, time.Time) {
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	} else {
		occurredAt = occurredAt.UTC()
	}
	return eventID, occurredAt
}

func (c *Coordinator) reserve(ctx context.Context, kind EventKind, eventID uuid.UUID) (func(context.Context), error) {
	if c.idempotency == nil {
		return func(context.Context) {}, nil
	}
	key := fmt.Sprintf("posting:%s:%s", kind, eventID)
	if err := c.idempotency.CheckAndInsert(ctx, key, "posting"); err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = c.idempotency.Delete(ctx, key)
	}, nil
}

func (c *Coordinator) committed(ctx context.Context, receipt Receipt) {
	if c.metrics != nil {
		c.metrics.EventPosted(string(receipt.Kind))
	}
	if c.audit != nil {
		_ = c.audit.Record(ctx, shared.AuditLog{
			Action:   "posting:" + string(receipt.Kind),
			Entity:   "event",
			EntityID: receipt.EventID.String(),
			Meta: map[string]any{
				"ledger_entry_ids":  receipt.LedgerEntryIDs,
				"stock_movement_id": receipt.StockMovementID,
			},
		})
	}
	if c.invalidator != nil {
		c.invalidator.Bump(ctx)
	}
}

func (c *Coordinator) fail(kind EventKind, err error) error {
	if c.metrics != nil {
		c.metrics.PostingFailed(string(kind), failReason(err))
	}
	return err
}

// translate maps engine errors to the coordinator's taxonomy.
func translate(err error) error {
	switch {
	case errors.Is(err, ledger.ErrPartyNotFound):
		return fmt.Errorf("%w: %w", ErrUnknownParty, err)
	case errors.Is(err, inventory.ErrItemNotFound):
		return fmt.Errorf("%w: %w", ErrUnknownItem, err)
	}
	return err
}

func failReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return "validation"
	case errors.Is(err, shared.ErrInvariant):
		return "invariant"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return "duplicate"
	}
	return "internal"
}
