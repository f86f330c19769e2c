package automation

import (
	"time"

	"github.com/agencydesk/agencydesk/internal/clients"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// BlockReason explains why the generator skipped a client.
type BlockReason string

const (
	BlockContractNotStarted       BlockReason = "CONTRACT_NOT_STARTED"
	BlockContractEnded            BlockReason = "CONTRACT_ENDED"
	BlockAllInstallmentsGenerated BlockReason = "ALL_INSTALLMENTS_GENERATED"
	BlockMonthlyAlreadyGenerated  BlockReason = "MONTHLY_ALREADY_GENERATED"
)

// GeneratedInvoice records one invoice the batch created.
type GeneratedInvoice struct {
	ClientID      int64     `json:"clientId"`
	ClientName    string    `json:"clientName"`
	InvoiceID     int64     `json:"invoiceId"`
	Number        string    `json:"number"`
	DueDate       time.Time `json:"dueDate"`
	Amount        float64   `json:"amount"`
	InstallmentNo *int      `json:"installmentNo,omitempty"`
}

// BlockedClient records a client skipped with a reason.
type BlockedClient struct {
	ClientID   int64       `json:"clientId"`
	ClientName string      `json:"clientName"`
	Reason     BlockReason `json:"reason"`
	Detail     string      `json:"detail,omitempty"`
}

// ClientError records a client whose generation errored. The batch keeps
// going; errors never abort other clients.
type ClientError struct {
	ClientID   int64  `json:"clientId"`
	ClientName string `json:"clientName"`
	Error      string `json:"error"`
}

// RunSummary condenses a generation run for operator review.
type RunSummary struct {
	ClientsVisited int     `json:"clientsVisited"`
	InvoicesCreated int    `json:"invoicesCreated"`
	TotalAmount    float64 `json:"totalAmount"`
	BlockedCount   int     `json:"blockedCount"`
	ErrorCount     int     `json:"errorCount"`
}

// RunReport is the partial-failure outcome of a generation run.
type RunReport struct {
	RunID   string             `json:"runId"`
	Success []GeneratedInvoice `json:"success"`
	Blocked []BlockedClient    `json:"blocked"`
	Errors  []ClientError      `json:"errors"`
	Summary RunSummary         `json:"summary"`
}

// PlannedInstallment is one entry of a client's installment schedule.
type PlannedInstallment struct {
	Number  int
	DueDate time.Time
	Amount  float64
}

// BuildInstallmentPlan precomputes the full installment schedule for a
// client: due dates cycle through the configured payment days, advancing
// one month per full cycle, each day clamped to the month length. The
// schedule is anchored on the contract start month, or on now when the
// contract has no start date.
func BuildInstallmentPlan(c *clients.Client, now time.Time) []PlannedInstallment {
	days := c.InstallmentPaymentDays
	if len(days) == 0 {
		days = []int{c.PaymentDay}
	}
	anchor := now
	if c.ContractStart != nil {
		anchor = *c.ContractStart
	}
	amount := c.InstallmentAmount()

	plan := make([]PlannedInstallment, 0, c.InstallmentCount)
	for i := 0; i < c.InstallmentCount; i++ {
		monthOffset := i / len(days)
		day := days[i%len(days)]
		// Step months via time.Date so a day-29..31 anchor cannot
		// normalize past the target month.
		base := time.Date(anchor.Year(), anchor.Month()+time.Month(monthOffset), 1, 0, 0, 0, 0, anchor.Location())
		plan = append(plan, PlannedInstallment{
			Number:  i + 1,
			DueDate: shared.DateForDay(base.Year(), base.Month(), day, anchor.Location()),
			Amount:  amount,
		})
	}
	return plan
}

// MonthlyDueDate computes the due date for a regular client: the payment
// day in the current month, clamped to month length, pushed one month
// ahead when it has already passed.
func MonthlyDueDate(paymentDay int, now time.Time) time.Time {
	due := shared.DateForDay(now.Year(), now.Month(), paymentDay, now.Location())
	if due.Before(now.Truncate(24 * time.Hour)) {
		due = shared.DateForDay(now.Year(), now.Month()+1, paymentDay, now.Location())
	}
	return due
}

// ProjectionMonth is one month of the forward revenue projection.
type ProjectionMonth struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	Expected  float64    `json:"expected"`
	Confirmed float64    `json:"confirmed"`
}

// Projection is an N-month forward revenue view assuming contracts stay
// active, cross-checked against income already booked per month.
type Projection struct {
	Months         []ProjectionMonth `json:"months"`
	TotalExpected  float64           `json:"totalExpected"`
	TotalConfirmed float64           `json:"totalConfirmed"`
}

// ClientSync records one client's derived payment status.
type ClientSync struct {
	ClientID int64                 `json:"clientId"`
	Status   clients.PaymentStatus `json:"status"`
}
