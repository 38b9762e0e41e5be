package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmledger/farmledger/internal/shared"
)

// Handler exposes the read-only report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/dashboard", h.dashboard)
	r.Get("/reports/range", h.rangeReport)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, dash)
}

func (h *Handler) rangeReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter RangeFilter
	var err error
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.Parse("2006-01-02", raw); err != nil {
			shared.WriteError(w, h.logger, shared.Validationf("reports: bad from date"))
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = time.Parse("2006-01-02", raw); err != nil {
			shared.WriteError(w, h.logger, shared.Validationf("reports: bad to date"))
			return
		}
		filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
	}
	filter.PartyID, _ = strconv.ParseInt(q.Get("party_id"), 10, 64)
	filter.FarmID, _ = strconv.ParseInt(q.Get("farm_id"), 10, 64)

	report, err := h.service.Range(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"from":            report.From.Format("2006-01-02"),
		"to":              report.To.Format("2006-01-02"),
		"eggs":            report.Eggs,
		"feed_kg":         report.FeedKg.StringFixed(2),
		"sales_afg":       report.SalesAFG.StringFixed(2),
		"sales_usd":       report.SalesUSD.StringFixed(2),
		"purchases_afg":   report.PurchasesAFG.StringFixed(2),
		"purchases_usd":   report.PurchasesUSD.StringFixed(2),
		"expenses_afg":    report.ExpensesAFG.StringFixed(2),
		"expenses_usd":    report.ExpensesUSD.StringFixed(2),
		"low_stock_count": report.LowStockCount,
	})
}
