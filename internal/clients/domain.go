package clients

import (
	"time"
)

// PaymentStatus is derived from a client's open/overdue invoice set.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusOverdue PaymentStatus = "OVERDUE"
)

// Client is a billable account within an organization. Clients are never
// hard-deleted; invoices and ledger transactions reference them for history.
type Client struct {
	ID       int64
	OrgID    string
	Name     string
	Email    string
	PlanName string

	ContractValue float64
	ContractStart *time.Time
	ContractEnd   *time.Time
	PaymentDay    int

	IsInstallment          bool
	InstallmentCount       int
	InstallmentValue       float64
	InstallmentPaymentDays []int

	PaymentStatus PaymentStatus
	Closed        bool

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// ContractActiveAt reports whether the contract window covers t. A missing
// start or end bound is treated as open on that side.
func (c *Client) ContractActiveAt(t time.Time) bool {
	if c.ContractStart != nil && t.Before(*c.ContractStart) {
		return false
	}
	if c.ContractEnd != nil && t.After(*c.ContractEnd) {
		return false
	}
	return true
}

// InstallmentAmount returns the per-installment amount, falling back to an
// even split of the contract value when no explicit value is configured.
func (c *Client) InstallmentAmount() float64 {
	if c.InstallmentValue > 0 {
		return c.InstallmentValue
	}
	if c.InstallmentCount > 0 {
		return c.ContractValue / float64(c.InstallmentCount)
	}
	return c.ContractValue
}

// ClientInput carries fields for creating or updating a client.
type ClientInput struct {
	Name     string
	Email    string
	PlanName string

	ContractValue float64
	ContractStart *time.Time
	ContractEnd   *time.Time
	PaymentDay    int

	IsInstallment          bool
	InstallmentCount       int
	InstallmentValue       float64
	InstallmentPaymentDays []int
}

// ListFilter narrows client listings.
type ListFilter struct {
	Search         string
	Closed         *bool
	PaymentStatus  PaymentStatus
	IncludeDeleted bool
	Page           int
	PerPage        int
}
