package farm

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes farm, shed and flock management.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers farm routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/farms", h.listFarms)
	r.Post("/farms", h.createFarm)
	r.Get("/farms/{id}", h.getFarm)
	r.Put("/farms/{id}", h.updateFarm)
	r.Delete("/farms/{id}", h.deleteFarm)
	r.Get("/farms/{id}/summary", h.farmSummary)
	r.Get("/farms/{id}/sheds", h.listSheds)

	r.Post("/sheds", h.createShed)
	r.Put("/sheds/{id}", h.updateShed)
	r.Delete("/sheds/{id}", h.deleteShed)
	r.Get("/sheds/{id}/flocks", h.listFlocks)

	r.Post("/flocks", h.createFlock)
	r.Put("/flocks/{id}", h.updateFlock)
	r.Delete("/flocks/{id}", h.deleteFlock)
}

func (h *Handler) listFarms(w http.ResponseWriter, r *http.Request) {
	farms, err := h.service.ListFarms(r.Context())
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, farms)
}

func (h *Handler) createFarm(w http.ResponseWriter, r *http.Request) {
	var input FarmInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	farm, err := h.service.CreateFarm(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, farm)
}

func (h *Handler) getFarm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	farm, err := h.service.GetFarm(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, farm)
}

func (h *Handler) updateFarm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var input FarmInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	farm, err := h.service.UpdateFarm(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, farm)
}

func (h *Handler) deleteFarm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteFarm(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) farmSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	summary, err := h.service.FarmSummary(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"farm":          summary.Farm,
		"shed_count":    summary.ShedCount,
		"capacity":      summary.Capacity,
		"bird_count":    summary.BirdCount,
		"expense_afg":   summary.ExpenseAFG.StringFixed(2),
		"expense_count": summary.ExpenseCount,
	})
}

func (h *Handler) listSheds(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	sheds, err := h.service.ListSheds(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sheds)
}

func (h *Handler) createShed(w http.ResponseWriter, r *http.Request) {
	var input ShedInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shed, err := h.service.CreateShed(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, shed)
}

func (h *Handler) updateShed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var input ShedInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shed, err := h.service.UpdateShed(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, shed)
}

func (h *Handler) deleteShed(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteShed(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listFlocks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	flocks, err := h.service.ListFlocks(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, flocks)
}

func (h *Handler) createFlock(w http.ResponseWriter, r *http.Request) {
	var input FlockInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	flock, err := h.service.CreateFlock(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, flock)
}

func (h *Handler) updateFlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var input FlockInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	flock, err := h.service.UpdateFlock(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, flock)
}

func (h *Handler) deleteFlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteFlock(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, shared.Validationf("farm: bad id")
	}
	return id, nil
}
