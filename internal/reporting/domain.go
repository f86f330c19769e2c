package reporting

import (
	"time"

	"github.com/agencydesk/agencydesk/internal/transactions"
)

// InvoiceSummary groups invoice counts and totals by status for a window.
type InvoiceSummary struct {
	OpenCount      int     `json:"openCount"`
	OpenTotal      float64 `json:"openTotal"`
	OverdueCount   int     `json:"overdueCount"`
	OverdueTotal   float64 `json:"overdueTotal"`
	PaidCount      int     `json:"paidCount"`
	PaidTotal      float64 `json:"paidTotal"`
	CancelledCount int     `json:"cancelledCount"`
}

// OverdueInvoice is one row of the dashboard overdue list.
type OverdueInvoice struct {
	InvoiceID   int64     `json:"invoiceId"`
	Number      string    `json:"number"`
	ClientID    int64     `json:"clientId"`
	ClientName  string    `json:"clientName"`
	DueDate     time.Time `json:"dueDate"`
	Total       float64   `json:"total"`
	DaysOverdue int       `json:"daysOverdue"`
}

// ClientTotal ranks a client by an aggregated amount.
type ClientTotal struct {
	ClientID int64   `json:"clientId"`
	Name     string  `json:"name"`
	Total    float64 `json:"total"`
}

// ActivityEntry is one row of the recent-activity feed.
type ActivityEntry struct {
	Kind        string    `json:"kind"`
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
}

// DashboardProjection is the period's projected net profit with the
// figures it was derived from. Fixed expenses already materialized this
// period are excluded from the non-fixed bucket so they are not counted
// twice.
type DashboardProjection struct {
	OpenInvoices       float64 `json:"openInvoices"`
	NonFixedExpense    float64 `json:"nonFixedExpense"`
	MaterializedFixed  float64 `json:"materializedFixed"`
	MonthlyFixedTotal  float64 `json:"monthlyFixedTotal"`
	PendingFixed       float64 `json:"pendingFixed"`
	ProjectedNetProfit float64 `json:"projectedNetProfit"`
}

// Dashboard is the composed dashboard view for one period window.
type Dashboard struct {
	PeriodFrom time.Time             `json:"periodFrom"`
	PeriodTo   time.Time             `json:"periodTo"`
	Summary    *transactions.Summary `json:"summary"`
	Invoices   InvoiceSummary        `json:"invoices"`
	Overdue    []OverdueInvoice      `json:"overdue"`
	TopRevenue []ClientTotal         `json:"topClientsByRevenue"`
	TopOverdue []ClientTotal         `json:"topClientsByOverdue"`
	Recent     []ActivityEntry       `json:"recentActivity"`
	Projection DashboardProjection   `json:"projection"`
}

// AnomalyTransaction is a ledger row flagged by the financial audit.
type AnomalyTransaction struct {
	TransactionID int64     `json:"transactionId"`
	Description   string    `json:"description"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	Flag          string    `json:"flag"`
}

// AuditMonth is the reconciliation result for one month.
type AuditMonth struct {
	Year              int                  `json:"year"`
	Month             time.Month           `json:"month"`
	FutureDated       []AnomalyTransaction `json:"futureDated"`
	NegativeAmounts   []AnomalyTransaction `json:"negativeAmounts"`
	FixedExpenseTotal float64              `json:"fixedExpenseTotal"`
	FixedBudget       float64              `json:"fixedBudget"`
	OverBudget        bool                 `json:"overBudget"`
	Clean             bool                 `json:"clean"`
}

// AuditReport is a consistency-checking pass over historical data. It
// flags anomalies; it does not enforce anything at write time.
type AuditReport struct {
	Year   int          `json:"year"`
	Months []AuditMonth `json:"months"`
}

// MonthTotals is one point of the 12-month trend series.
type MonthTotals struct {
	Month   time.Month `json:"month"`
	Income  float64    `json:"income"`
	Expense float64    `json:"expense"`
}

// GlobalSummary holds lifetime totals plus a one-year monthly series.
type GlobalSummary struct {
	TotalIncome  float64       `json:"totalIncome"`
	TotalExpense float64       `json:"totalExpense"`
	NetProfit    float64       `json:"netProfit"`
	Year         int           `json:"year"`
	Series       []MonthTotals `json:"series"`
}
