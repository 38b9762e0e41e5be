package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes stock-item management and manual adjustments. Sale,
// purchase and feed-issue movements are written by their own services, not
// through this handler.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/low-stock", h.lowStock)
	r.Get("/items/{id}", h.getItem)
	r.Put("/items/{id}", h.updateItem)
	r.Delete("/items/{id}", h.deleteItem)
	r.Get("/items/{id}/movements", h.listMovements)
	r.Post("/items/{id}/movements", h.postAdjustment)
}

type itemResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Unit             string `json:"unit"`
	QuantityOnHand   string `json:"quantity_on_hand"`
	ReorderThreshold string `json:"reorder_threshold"`
	LowStock         bool   `json:"low_stock"`
}

func toItemResponse(i StockItem) itemResponse {
	return itemResponse{
		ID:               i.ID,
		Name:             i.Name,
		Unit:             i.Unit,
		QuantityOnHand:   i.QuantityOnHand.String(),
		ReorderThreshold: i.ReorderThreshold.String(),
		LowStock:         i.LowStock(),
	}
}

type movementResponse struct {
	ID            int64  `json:"id"`
	ItemID        int64  `json:"item_id"`
	Delta         string `json:"delta"`
	ReferenceKind string `json:"reference_kind"`
	ReferenceID   string `json:"reference_id"`
	Note          string `json:"note,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

func toMovementResponse(m StockMovement) movementResponse {
	return movementResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		Delta:         m.Delta.String(),
		ReferenceKind: string(m.ReferenceKind),
		ReferenceID:   m.ReferenceID,
		Note:          m.Note,
		OccurredAt:    m.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := make([]itemResponse, len(items))
	for i, item := range items {
		resp[i] = toItemResponse(item)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStockItems(r.Context())
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := make([]itemResponse, len(items))
	for i, item := range items {
		resp[i] = toItemResponse(item)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var input CreateItemInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var input UpdateItemInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), ListMovementsFilter{ItemID: id, Limit: limit})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = toMovementResponse(m)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

type adjustmentRequest struct {
	Delta     string `json:"delta"`
	Note      string `json:"note"`
	Backorder bool   `json:"backorder"`
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var req adjustmentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	delta, err := parseAmount(req.Delta, "delta")
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	movement, err := h.service.ApplyMovement(r.Context(), ApplyMovementInput{
		ItemID:        id,
		Delta:         delta,
		ReferenceKind: MovementAdjustment,
		Note:          req.Note,
		Backorder:     req.Backorder,
	})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toMovementResponse(movement))
}

func itemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, shared.Validationf("inventory: bad item id")
	}
	return id, nil
}
