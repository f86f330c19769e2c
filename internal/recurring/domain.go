package recurring

import (
	"time"
)

// Cycle is the billing cycle of a recurring expense template.
type Cycle string

const (
	CycleMonthly Cycle = "MONTHLY"
	CycleAnnual  Cycle = "ANNUAL"
)

// Expense is a template describing a periodic obligation. Materialization
// converts it into one ledger transaction per period.
type Expense struct {
	ID         int64
	OrgID      string
	Name       string
	Category   string
	Amount     float64
	Cycle      Cycle
	DayOfMonth int
	Active     bool

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// ExpenseInput carries fields for creating or updating a template.
type ExpenseInput struct {
	Name       string
	Category   string
	Amount     float64
	Cycle      Cycle
	DayOfMonth int
	Active     bool
}

// ListFilter narrows template listings.
type ListFilter struct {
	Cycle          Cycle
	Active         *bool
	IncludeDeleted bool
	Page           int
	PerPage        int
}

// MaterializedItem records one template turned into a ledger entry.
type MaterializedItem struct {
	ExpenseID     int64     `json:"expenseId"`
	Name          string    `json:"name"`
	TransactionID int64     `json:"transactionId"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
}

// SkippedItem records a template that already had an entry this period.
type SkippedItem struct {
	ExpenseID int64  `json:"expenseId"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

// FailedItem records a template whose materialization errored.
type FailedItem struct {
	ExpenseID int64  `json:"expenseId"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

// MaterializeReport is the partial-failure outcome of a materialization
// run. The batch always completes; each template lands in exactly one
// bucket.
type MaterializeReport struct {
	RunID   string             `json:"runId"`
	Cycle   Cycle              `json:"cycle"`
	Created []MaterializedItem `json:"created"`
	Skipped []SkippedItem      `json:"skipped"`
	Failed  []FailedItem       `json:"failed"`
}
