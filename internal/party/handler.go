package party

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes the party register.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers party routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/parties", h.list)
	r.Post("/parties", h.create)
	r.Get("/parties/{id}", h.detail)
	r.Put("/parties/{id}", h.update)
	r.Delete("/parties/{id}", h.delete)
}

type partyResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func toPartyResponse(p Party) partyResponse {
	return partyResponse{ID: p.ID, Name: p.Name, Phone: p.Phone, Address: p.Address, Notes: p.Notes}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	parties, total, err := h.service.List(r.Context(), ListFilter{
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	items := make([]partyResponse, len(parties))
	for i, p := range parties {
		items[i] = toPartyResponse(p)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	p, err := h.service.Create(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toPartyResponse(p))
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := partyID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	detail, err := h.service.Detail(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"party":       toPartyResponse(detail.Party),
		"balance_afg": detail.BalanceAFG.StringFixed(2),
		"balance_usd": detail.BalanceUSD.StringFixed(2),
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := partyID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var input UpdateInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	p, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toPartyResponse(p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := partyID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func partyID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, shared.Validationf("party: bad id")
	}
	return id, nil
}
