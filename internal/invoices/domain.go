package invoices

import (
	"time"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// Status enumerates invoice lifecycle states. PAID and CANCELLED are
// terminal.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

// Invoice is a billing document for one client in one period.
type Invoice struct {
	ID       int64
	OrgID    string
	ClientID int64
	Number   string
	Status   Status

	IssueDate   time.Time
	DueDate     time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time

	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64

	Notes         string
	InstallmentNo *int

	Items []Item

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Item is one invoice line. Total = Quantity × UnitAmount.
type Item struct {
	ID          int64
	InvoiceID   int64
	Description string
	Quantity    float64
	UnitAmount  float64
	Total       float64
}

// ItemInput carries fields for a new invoice line.
type ItemInput struct {
	Description string
	Quantity    float64
	UnitAmount  float64
}

// CreateRequest carries fields for a new invoice.
type CreateRequest struct {
	ClientID      int64
	IssueDate     time.Time
	DueDate       time.Time
	Discount      float64
	Tax           float64
	Notes         string
	InstallmentNo *int
	Items         []ItemInput
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status         Status
	ClientID       int64
	DueFrom        time.Time
	DueTo          time.Time
	IncludeDeleted bool
	Page           int
	PerPage        int
}

// Totals holds the derived invoice amounts.
type Totals struct {
	Subtotal float64
	Total    float64
	Lines    []float64
}

// CalculateTotals derives line totals, subtotal and the invoice total:
// subtotal = Σ quantity×unitAmount, total = subtotal − discount + tax.
func CalculateTotals(items []ItemInput, discount, tax float64) Totals {
	t := Totals{Lines: make([]float64, len(items))}
	for i, item := range items {
		line := shared.RoundCents(item.Quantity * item.UnitAmount)
		t.Lines[i] = line
		t.Subtotal += line
	}
	t.Subtotal = shared.RoundCents(t.Subtotal)
	t.Total = shared.RoundCents(t.Subtotal - discount + tax)
	return t
}
