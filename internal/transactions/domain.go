package transactions

import (
	"time"
)

// Type determines the sign of a ledger entry's impact; amounts stay positive.
type Type string

const (
	TypeIncome  Type = "INCOME"
	TypeExpense Type = "EXPENSE"
)

// Subtype classifies the origin of a ledger entry.
type Subtype string

const (
	SubtypeInvoicePayment Subtype = "INVOICE_PAYMENT"
	SubtypeFixedExpense   Subtype = "FIXED_EXPENSE"
	SubtypeInternalCost   Subtype = "INTERNAL_COST"
	SubtypeOtherIncome    Subtype = "OTHER_INCOME"
	SubtypeOtherExpense   Subtype = "OTHER_EXPENSE"
)

// Status of a ledger entry. Only CONFIRMED rows count toward summaries.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction is a ledger entry recording one money movement. Rows are
// never hard-deleted; cancellation and soft delete preserve history.
type Transaction struct {
	ID          int64
	OrgID       string
	Type        Type
	Subtype     Subtype
	Category    string
	Description string
	Amount      float64
	Status      Status
	Date        time.Time

	ClientID           *int64
	InvoiceID          *int64
	CostItemID         *int64
	RecurringExpenseID *int64

	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// CreateInput carries fields for a new ledger entry.
type CreateInput struct {
	Type        Type
	Subtype     Subtype
	Category    string
	Description string
	Amount      float64
	Status      Status
	Date        time.Time

	ClientID           *int64
	InvoiceID          *int64
	CostItemID         *int64
	RecurringExpenseID *int64

	Metadata map[string]any
}

// UpdateInput carries mutable fields of an existing entry.
type UpdateInput struct {
	Category    *string
	Description *string
	Status      *Status
	Date        *time.Time
	Metadata    map[string]any
}

// ListFilter narrows ledger listings.
type ListFilter struct {
	Type           Type
	Subtype        Subtype
	Status         Status
	ClientID       int64
	DateFrom       time.Time
	DateTo         time.Time
	IncludeDeleted bool
	Page           int
	PerPage        int
}

// Summary aggregates CONFIRMED ledger entries over a period window.
type Summary struct {
	TotalIncome   float64          `json:"totalIncome"`
	TotalExpense  float64          `json:"totalExpense"`
	NetProfit     float64          `json:"netProfit"`
	ProfitMargin  float64          `json:"profitMargin"`
	PendingIncome float64          `json:"pendingIncome"`
	ByCategory    []CategoryBucket `json:"byCategory"`
	BySubtype     []SubtypeBucket  `json:"bySubtype"`
}

// CategoryBucket is one row of the per-category breakdown.
type CategoryBucket struct {
	Category string  `json:"category"`
	Type     Type    `json:"type"`
	Total    float64 `json:"total"`
}

// SubtypeBucket is one row of the per-subtype breakdown.
type SubtypeBucket struct {
	Subtype Subtype `json:"subtype"`
	Type    Type    `json:"type"`
	Total   float64 `json:"total"`
}
