package posting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes the posting endpoints. This is the only write surface for
// sales, purchases, expenses and payments.
type Handler struct {
	logger      *slog.Logger
	coordinator *Coordinator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, coordinator *Coordinator) *Handler {
	return &Handler{logger: logger, coordinator: coordinator}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.postSale)
	r.Get("/sales/{id}", h.getSale)
	r.Post("/purchases", h.postPurchase)
	r.Get("/purchases/{id}", h.getPurchase)
	r.Post("/expenses", h.postExpense)
	r.Get("/expenses/{id}", h.getExpense)
	r.Post("/payments", h.postPayment)
	r.Get("/payments/{id}", h.getPayment)
	r.Post("/events/{kind}/{id}/void", h.void)
}

type saleRequest struct {
	EventID    string `json:"event_id"`
	PartyID    int64  `json:"party_id"`
	ItemID     int64  `json:"item_id"`
	Quantity   string `json:"quantity"`
	Rate       string `json:"rate"`
	Currency   string `json:"currency"`
	OnAccount  bool   `json:"on_account"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type purchaseRequest struct {
	EventID    string `json:"event_id"`
	PartyID    int64  `json:"party_id"`
	ItemID     int64  `json:"item_id"`
	Quantity   string `json:"quantity"`
	Rate       string `json:"rate"`
	Currency   string `json:"currency"`
	Backorder  bool   `json:"backorder"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type expenseRequest struct {
	EventID    string `json:"event_id"`
	PartyID    int64  `json:"party_id"`
	FarmID     int64  `json:"farm_id"`
	Category   string `json:"category"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type paymentRequest struct {
	EventID    string `json:"event_id"`
	PartyID    int64  `json:"party_id"`
	Direction  string `json:"direction"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note"`
}

type receiptResponse struct {
	EventID         string  `json:"event_id"`
	Kind            string  `json:"kind"`
	LedgerEntryIDs  []int64 `json:"ledger_entry_ids"`
	StockMovementID int64   `json:"stock_movement_id,omitempty"`
	PostedAt        string  `json:"posted_at"`
}

func toReceiptResponse(r Receipt) receiptResponse {
	return receiptResponse{
		EventID:         r.EventID.String(),
		Kind:            string(r.Kind),
		LedgerEntryIDs:  r.LedgerEntryIDs,
		StockMovementID: r.StockMovementID,
		PostedAt:        r.PostedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) postSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	input := SaleInput{
		PartyID:   req.PartyID,
		ItemID:    req.ItemID,
		Currency:  ledger.Currency(req.Currency),
		OnAccount: req.OnAccount,
		Note:      req.Note,
	}
	var err error
	if input.EventID, err = parseEventID(req.EventID); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.Quantity, err = parseDecimal(req.Quantity, "quantity"); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.Rate, err = parseDecimal(req.Rate, "rate"); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.OccurredAt, err = parseOccurredAt(req.OccurredAt); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	receipt, err := h.coordinator.PostSale(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) postPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	input := PurchaseInput{
		PartyID:   req.PartyID,
		ItemID:    req.ItemID,
		Currency:  ledger.Currency(req.Currency),
		Backorder: req.Backorder,
		Note:      req.Note,
	}
	var err error
	if input.EventID, err = parseEventID(req.EventID); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.Quantity, err = parseDecimal(req.Quantity, "quantity"); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.Rate, err = parseDecimal(req.Rate, "rate"); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.OccurredAt, err = parseOccurredAt(req.OccurredAt); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	receipt, err := h.coordinator.PostPurchase(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) postExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	input := ExpenseInput{
		PartyID:  req.PartyID,
		FarmID:   req.FarmID,
		Category: ExpenseCategory(req.Category),
		Currency: ledger.Currency(req.Currency),
		Note:     req.Note,
	}
	var err error
	if input.EventID, err = parseEventID(req.EventID); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.Amount, err = parseDecimal(req.Amount, "amount"); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.OccurredAt, err = parseOccurredAt(req.OccurredAt); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	receipt, err := h.coordinator.PostExpense(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	input := PaymentInput{
		PartyID:   req.PartyID,
		Direction: PaymentDirection(req.Direction),
		Currency:  ledger.Currency(req.Currency),
		Note:      req.Note,
	}
	var err error
	if input.EventID, err = parseEventID(req.EventID); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.Amount, err = parseDecimal(req.Amount, "amount"); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if input.OccurredAt, err = parseOccurredAt(req.OccurredAt); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	receipt, err := h.coordinator.PostPayment(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	kind := EventKind(chi.URLParam(r, "kind"))
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("posting: bad event id"))
		return
	}
	receipt, err := h.coordinator.Void(r.Context(), kind, id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("posting: bad event id"))
		return
	}
	rec, err := h.coordinator.GetSale(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"event_id":   rec.EventID.String(),
		"party_id":   rec.PartyID,
		"item_id":    rec.ItemID,
		"quantity":   rec.Quantity.String(),
		"rate":       rec.Rate.StringFixed(2),
		"total":      rec.Total.StringFixed(2),
		"currency":   string(rec.Currency),
		"on_account": rec.OnAccount,
		"voided":     rec.VoidedAt != nil,
	})
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("posting: bad event id"))
		return
	}
	rec, err := h.coordinator.GetPurchase(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"event_id": rec.EventID.String(),
		"party_id": rec.PartyID,
		"item_id":  rec.ItemID,
		"quantity": rec.Quantity.String(),
		"rate":     rec.Rate.StringFixed(2),
		"total":    rec.Total.StringFixed(2),
		"currency": string(rec.Currency),
		"voided":   rec.VoidedAt != nil,
	})
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("posting: bad event id"))
		return
	}
	rec, err := h.coordinator.GetExpense(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"event_id": rec.EventID.String(),
		"party_id": rec.PartyID,
		"farm_id":  rec.FarmID,
		"category": string(rec.Category),
		"amount":   rec.Amount.StringFixed(2),
		"currency": string(rec.Currency),
		"voided":   rec.VoidedAt != nil,
	})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("posting: bad event id"))
		return
	}
	rec, err := h.coordinator.GetPayment(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"event_id":  rec.EventID.String(),
		"party_id":  rec.PartyID,
		"direction": string(rec.Direction),
		"amount":    rec.Amount.StringFixed(2),
		"currency":  string(rec.Currency),
		"voided":    rec.VoidedAt != nil,
	})
}

func parseEventID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.Validationf("posting: bad event id %q", raw)
	}
	return id, nil
}

func parseDecimal(raw, label string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, shared.Validationf("posting: %s required", label)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, shared.Validationf("posting: bad %s %q", label, raw)
	}
	return d, nil
}

func parseOccurredAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, shared.Validationf("posting: bad occurred_at timestamp")
	}
	return t, nil
}
