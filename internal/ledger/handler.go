package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes ledger read endpoints and manual adjustments. Sales,
// purchases, expenses and payments must go through the posting coordinator,
// never through this handler.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/parties/{id}/balance", h.balance)
	r.Get("/parties/{id}/statement", h.statement)
	r.Get("/parties/{id}/entries", h.listEntries)
	r.Get("/entries/{id}", h.getEntry)
	r.Post("/entries", h.postAdjustment)
	r.Post("/entries/{id}/reverse", h.reverseEntry)
}

type movementsPayload struct {
	DebitAFG  string `json:"debit_afg"`
	CreditAFG string `json:"credit_afg"`
	DebitUSD  string `json:"debit_usd"`
	CreditUSD string `json:"credit_usd"`
}

func (p movementsPayload) toMovements() (Movements, error) {
	var m Movements
	var err error
	parse := func(s string) (decimal.Decimal, error) {
		if s == "" {
			return decimal.Zero, nil
		}
		d, perr := decimal.NewFromString(s)
		if perr != nil {
			return decimal.Zero, shared.Validationf("ledger: bad amount %q", s)
		}
		return d, nil
	}
	if m.DebitAFG, err = parse(p.DebitAFG); err != nil {
		return Movements{}, err
	}
	if m.CreditAFG, err = parse(p.CreditAFG); err != nil {
		return Movements{}, err
	}
	if m.DebitUSD, err = parse(p.DebitUSD); err != nil {
		return Movements{}, err
	}
	if m.CreditUSD, err = parse(p.CreditUSD); err != nil {
		return Movements{}, err
	}
	return m, nil
}

type entryResponse struct {
	ID            int64  `json:"id"`
	PartyID       int64  `json:"party_id"`
	PostedAt      string `json:"posted_at"`
	DebitAFG      string `json:"debit_afg"`
	CreditAFG     string `json:"credit_afg"`
	DebitUSD      string `json:"debit_usd"`
	CreditUSD     string `json:"credit_usd"`
	ReferenceKind string `json:"reference_kind"`
	ReferenceID   string `json:"reference_id"`
	Description   string `json:"description,omitempty"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		PartyID:       e.PartyID,
		PostedAt:      e.PostedAt.UTC().Format(time.RFC3339),
		DebitAFG:      e.Movements.DebitAFG.StringFixed(2),
		CreditAFG:     e.Movements.CreditAFG.StringFixed(2),
		DebitUSD:      e.Movements.DebitUSD.StringFixed(2),
		CreditUSD:     e.Movements.CreditUSD.StringFixed(2),
		ReferenceKind: string(e.ReferenceKind),
		ReferenceID:   e.ReferenceID,
		Description:   e.Description,
	}
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	partyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("ledger: bad party id"))
		return
	}
	currency := Currency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = CurrencyAFG
	}
	asOf := time.Time{}
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(time.RFC3339, raw); err != nil {
			shared.WriteError(w, h.logger, shared.Validationf("ledger: bad as_of timestamp"))
			return
		}
	}
	balance, err := h.service.Balance(r.Context(), partyID, currency, asOf)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"party_id": partyID,
		"currency": currency,
		"balance":  balance.StringFixed(2),
	})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	partyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("ledger: bad party id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	stmt, err := h.service.Statement(r.Context(), partyID, from, to)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := map[string]any{
		"party_id":    stmt.PartyID,
		"entry_count": stmt.EntryCount,
		"afg":         totalsPayload(stmt.AFG),
		"usd":         totalsPayload(stmt.USD),
	}
	if stmt.LastEntryAt != nil {
		resp["last_entry_at"] = stmt.LastEntryAt.UTC().Format(time.RFC3339)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func totalsPayload(t CurrencyTotals) map[string]string {
	return map[string]string{
		"total_debit":  t.TotalDebit.StringFixed(2),
		"total_credit": t.TotalCredit.StringFixed(2),
		"balance":      t.Balance.StringFixed(2),
	}
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	partyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("ledger: bad party id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListEntries(r.Context(), ListEntriesFilter{PartyID: partyID, From: from, To: to, Limit: limit})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toEntryResponse(e)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("ledger: bad entry id"))
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toEntryResponse(entry))
}

type postAdjustmentRequest struct {
	PartyID     int64            `json:"party_id"`
	Movements   movementsPayload `json:"movements"`
	Description string           `json:"description"`
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	var req postAdjustmentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	movements, err := req.Movements.toMovements()
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	entry, err := h.service.PostEntry(r.Context(), PostEntryInput{
		PartyID:       req.PartyID,
		Movements:     movements,
		ReferenceKind: RefAdjustment,
		Description:   req.Description,
	})
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toEntryResponse(entry))
}

type reverseRequest struct {
	Description string `json:"description"`
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.WriteError(w, h.logger, shared.Validationf("ledger: bad entry id"))
		return
	}
	var req reverseRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), id, req.Description)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, shared.Validationf("bad from timestamp")
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return from, to, shared.Validationf("bad to timestamp")
		}
	}
	return from, to, nil
}
