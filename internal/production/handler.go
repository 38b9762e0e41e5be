package production

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes egg production and feed issue endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sheds/{id}/production", h.listRecords)
	r.Post("/production", h.createRecord)
	r.Get("/production/{id}", h.getRecord)
	r.Put("/production/{id}", h.updateRecord)
	r.Delete("/production/{id}", h.deleteRecord)

	r.Get("/sheds/{id}/feed-issues", h.listIssues)
	r.Post("/feed-issues", h.issueFeed)
	r.Get("/feed-issues/{id}", h.getIssue)
	r.Post("/feed-issues/{id}/void", h.voidIssue)
}

type recordResponse struct {
	ID         int64  `json:"id"`
	ShedID     int64  `json:"shed_id"`
	ProducedOn string `json:"produced_on"`
	Small      int    `json:"small"`
	Medium     int    `json:"medium"`
	Large      int    `json:"large"`
	Broken     int    `json:"broken"`
	Total      int    `json:"total"`
}

func toRecordResponse(r EggRecord) recordResponse {
	return recordResponse{
		ID:         r.ID,
		ShedID:     r.ShedID,
		ProducedOn: r.ProducedOn.UTC().Format("2006-01-02"),
		Small:      r.Small,
		Medium:     r.Medium,
		Large:      r.Large,
		Broken:     r.Broken,
		Total:      r.Total(),
	}
}

type issueResponse struct {
	ID       int64  `json:"id"`
	EventID  string `json:"event_id"`
	ShedID   int64  `json:"shed_id"`
	ItemID   int64  `json:"item_id"`
	Quantity string `json:"quantity"`
	IssuedOn string `json:"issued_on"`
	Note     string `json:"note,omitempty"`
	Voided   bool   `json:"voided"`
}

func toIssueResponse(i FeedIssue) issueResponse {
	return issueResponse{
		ID:       i.ID,
		EventID:  i.EventID.String(),
		ShedID:   i.ShedID,
		ItemID:   i.ItemID,
		Quantity: i.Quantity.String(),
		IssuedOn: i.IssuedOn.UTC().Format(time.RFC3339),
		Note:     i.Note,
		Voided:   i.VoidedAt != nil,
	}
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	shedID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("production: bad shed id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	records, err := h.service.ListRecords(r.Context(), EggRangeFilter{ShedID: shedID, From: from, To: to})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := make([]recordResponse, len(records))
	for i, rec := range records {
		resp[i] = toRecordResponse(rec)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var input EggInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	rec, err := h.service.CreateRecord(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	rec, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	var input EggInput
	if err := shared.DecodeJSON(r, &input); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	rec, err := h.service.UpdateRecord(r.Context(), id, input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listIssues(w http.ResponseWriter, r *http.Request) {
	shedID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("production: bad shed id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	issues, err := h.service.ListIssues(r.Context(), shedID, from, to)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := make([]issueResponse, len(issues))
	for i, issue := range issues {
		resp[i] = toIssueResponse(issue)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

type issueRequest struct {
	ShedID   int64  `json:"shed_id"`
	ItemID   int64  `json:"item_id"`
	Quantity string `json:"quantity"`
	IssuedOn string `json:"issued_on"`
	Note     string `json:"note"`
}

func (h *Handler) issueFeed(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("production: bad quantity %q", req.Quantity))
		return
	}
	input := FeedIssueInput{ShedID: req.ShedID, ItemID: req.ItemID, Quantity: qty, Note: req.Note}
	if req.IssuedOn != "" {
		if input.IssuedOn, err = time.Parse(time.RFC3339, req.IssuedOn); err != nil {
			shared.WriteError(w, h.logger, shared.Validationf("production: bad issued_on timestamp"))
			return
		}
	}
	issue, err := h.service.IssueFeed(r.Context(), input)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toIssueResponse(issue))
}

func (h *Handler) getIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	issue, err := h.service.GetIssue(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toIssueResponse(issue))
}

func (h *Handler) voidIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	if err := h.service.VoidIssue(r.Context(), id); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, shared.Validationf("production: bad id")
	}
	return id, nil
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			return from, to, shared.Validationf("production: bad from date")
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			return from, to, shared.Validationf("production: bad to date")
		}
	}
	return from, to, nil
}
