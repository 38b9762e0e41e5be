package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the front-page projection: today's activity at a glance.
type Dashboard struct {
	Date          string `json:"date"`
	EggsToday     int    `json:"eggs_today"`
	FeedKgToday   string `json:"feed_kg_today"`
	SalesAFGToday string `json:"sales_afg_today"`
	LowStockCount int    `json:"low_stock_count"`

	// Display strings with thousands separators, the way the books are
	// shown on paper.
	EggsTodayDisplay string `json:"eggs_today_display"`
	SalesAFGDisplay  string `json:"sales_afg_display"`
}

// RangeReport aggregates activity over a date range.
type RangeReport struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Eggs          int             `json:"eggs"`
	FeedKg        decimal.Decimal `json:"feed_kg"`
	SalesAFG      decimal.Decimal `json:"sales_afg"`
	SalesUSD      decimal.Decimal `json:"sales_usd"`
	PurchasesAFG  decimal.Decimal `json:"purchases_afg"`
	PurchasesUSD  decimal.Decimal `json:"purchases_usd"`
	ExpensesAFG   decimal.Decimal `json:"expenses_afg"`
	ExpensesUSD   decimal.Decimal `json:"expenses_usd"`
	LowStockCount int             `json:"low_stock_count"`
}

// RangeFilter selects the range and optional entity scoping.
type RangeFilter struct {
	From    time.Time
	To      time.Time
	PartyID int64
	FarmID  int64
}
