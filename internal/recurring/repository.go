package recurring

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for expense templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `
	id, org_id, name, category, amount, cycle, day_of_month, active,
	created_at, updated_at, deleted_at`

func scanExpense(row pgx.Row) (*Expense, error) {
	var e Expense
	err := row.Scan(
		&e.ID, &e.OrgID, &e.Name, &e.Category, &e.Amount, &e.Cycle, &e.DayOfMonth, &e.Active,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recurring: %w", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("recurring: scan: %w", err)
	}
	return &e, nil
}

// Create inserts a template row.
func (r *Repository) Create(ctx context.Context, orgID string, input ExpenseInput) (*Expense, error) {
	query := `
		INSERT INTO recurring_expenses (
			org_id, name, category, amount, cycle, day_of_month, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING` + expenseColumns

	row := r.pool.QueryRow(ctx, query,
		orgID, input.Name, input.Category, input.Amount, input.Cycle, input.DayOfMonth, input.Active)
	return scanExpense(row)
}

// Update mutates a template in place.
func (r *Repository) Update(ctx context.Context, orgID string, id int64, input ExpenseInput) (*Expense, error) {
	query := `
		UPDATE recurring_expenses SET
			name = $3, category = $4, amount = $5, cycle = $6, day_of_month = $7, active = $8,
			updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL
		RETURNING` + expenseColumns

	row := r.pool.QueryRow(ctx, query,
		id, orgID, input.Name, input.Category, input.Amount, input.Cycle, input.DayOfMonth, input.Active)
	return scanExpense(row)
}

// GetByID fetches one template scoped by organization.
func (r *Repository) GetByID(ctx context.Context, orgID string, id int64) (*Expense, error) {
	query := `SELECT` + expenseColumns + ` FROM recurring_expenses WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`
	return scanExpense(r.pool.QueryRow(ctx, query, id, orgID))
}

// List returns templates matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, orgID string, filter ListFilter) ([]Expense, int, error) {
	where := `WHERE org_id = $1`
	args := []any{orgID}
	if !filter.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}
	if filter.Cycle != "" {
		args = append(args, filter.Cycle)
		where += fmt.Sprintf(` AND cycle = $%d`, len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where += fmt.Sprintf(` AND active = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recurring_expenses `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("recurring: count: %w", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT%s FROM recurring_expenses %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		expenseColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("recurring: list: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// ListActive returns active, non-deleted templates for the cycle.
func (r *Repository) ListActive(ctx context.Context, orgID string, cycle Cycle) ([]Expense, error) {
	query := `SELECT` + expenseColumns + `
		FROM recurring_expenses
		WHERE org_id = $1 AND cycle = $2 AND active = TRUE AND deleted_at IS NULL
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, orgID, cycle)
	if err != nil {
		return nil, fmt.Errorf("recurring: list active: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SoftDelete stamps deleted_at.
func (r *Repository) SoftDelete(ctx context.Context, orgID string, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recurring_expenses SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID)
	if err != nil {
		return fmt.Errorf("recurring: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recurring: %w", shared.ErrNotFound)
	}
	return nil
}
