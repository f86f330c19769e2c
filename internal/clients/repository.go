package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `
	id, org_id, name, email, plan_name,
	contract_value, contract_start, contract_end, payment_day,
	is_installment, installment_count, installment_value, installment_payment_days,
	payment_status, closed, created_at, updated_at, deleted_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var days []int32
	err := row.Scan(
		&c.ID, &c.OrgID, &c.Name, &c.Email, &c.PlanName,
		&c.ContractValue, &c.ContractStart, &c.ContractEnd, &c.PaymentDay,
		&c.IsInstallment, &c.InstallmentCount, &c.InstallmentValue, &days,
		&c.PaymentStatus, &c.Closed, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("clients: %w", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("clients: scan: %w", err)
	}
	c.InstallmentPaymentDays = make([]int, 0, len(days))
	for _, d := range days {
		c.InstallmentPaymentDays = append(c.InstallmentPaymentDays, int(d))
	}
	return &c, nil
}

func daysParam(days []int) []int32 {
	out := make([]int32, 0, len(days))
	for _, d := range days {
		out = append(out, int32(d))
	}
	return out
}

// Create inserts a new client row.
func (r *Repository) Create(ctx context.Context, orgID string, input ClientInput) (*Client, error) {
	query := `
		INSERT INTO clients (
			org_id, name, email, plan_name,
			contract_value, contract_start, contract_end, payment_day,
			is_installment, installment_count, installment_value, installment_payment_days,
			payment_status, closed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'PENDING', FALSE, NOW(), NOW())
		RETURNING` + clientColumns

	row := r.pool.QueryRow(ctx, query,
		orgID, input.Name, input.Email, input.PlanName,
		input.ContractValue, input.ContractStart, input.ContractEnd, input.PaymentDay,
		input.IsInstallment, input.InstallmentCount, input.InstallmentValue, daysParam(input.InstallmentPaymentDays),
	)
	return scanClient(row)
}

// Update mutates contract fields of a client in place.
func (r *Repository) Update(ctx context.Context, orgID string, id int64, input ClientInput) (*Client, error) {
	query := `
		UPDATE clients SET
			name = $3, email = $4, plan_name = $5,
			contract_value = $6, contract_start = $7, contract_end = $8, payment_day = $9,
			is_installment = $10, installment_count = $11, installment_value = $12,
			installment_payment_days = $13, updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL
		RETURNING` + clientColumns

	row := r.pool.QueryRow(ctx, query,
		id, orgID, input.Name, input.Email, input.PlanName,
		input.ContractValue, input.ContractStart, input.ContractEnd, input.PaymentDay,
		input.IsInstallment, input.InstallmentCount, input.InstallmentValue, daysParam(input.InstallmentPaymentDays),
	)
	return scanClient(row)
}

// GetByID fetches one client scoped by organization.
func (r *Repository) GetByID(ctx context.Context, orgID string, id int64) (*Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`
	return scanClient(r.pool.QueryRow(ctx, query, id, orgID))
}

// List returns clients matching the filter plus the total row count.
func (r *Repository) List(ctx context.Context, orgID string, filter ListFilter) ([]Client, int, error) {
	where := `WHERE org_id = $1`
	args := []any{orgID}
	if !filter.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d)`, len(args), len(args))
	}
	if filter.Closed != nil {
		args = append(args, *filter.Closed)
		where += fmt.Sprintf(` AND closed = $%d`, len(args))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		where += fmt.Sprintf(` AND payment_status = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("clients: count: %w", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT%s FROM clients %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// ListBillable returns non-closed, non-deleted clients with a positive
// contract value; the set the invoice automation walks.
func (r *Repository) ListBillable(ctx context.Context, orgID string) ([]Client, error) {
	query := `SELECT` + clientColumns + `
		FROM clients
		WHERE org_id = $1 AND deleted_at IS NULL AND closed = FALSE AND contract_value > 0
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("clients: list billable: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("clients: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("clients: %w", shared.ErrNotFound)
	}
	return nil
}

// SetClosed toggles the closed flag.
func (r *Repository) SetClosed(ctx context.Context, orgID string, id int64, closed bool) error {
	return r.exec(ctx,
		`UPDATE clients SET closed = $3, updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID, closed)
}

// SetPaymentStatus stores the derived payment status.
func (r *Repository) SetPaymentStatus(ctx context.Context, orgID string, id int64, status PaymentStatus) error {
	return r.exec(ctx,
		`UPDATE clients SET payment_status = $3, updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID, status)
}

// SoftDelete stamps deleted_at.
func (r *Repository) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return r.exec(ctx,
		`UPDATE clients SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID)
}

// Restore clears deleted_at.
func (r *Repository) Restore(ctx context.Context, orgID string, id int64) error {
	return r.exec(ctx,
		`UPDATE clients SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NOT NULL`,
		id, orgID)
}
