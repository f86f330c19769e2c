package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const txColumns = `
	id, org_id, type, subtype, category, description, amount, status, date,
	client_id, invoice_id, cost_item_id, recurring_expense_id, metadata,
	created_at, updated_at, deleted_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.OrgID, &t.Type, &t.Subtype, &t.Category, &t.Description,
		&t.Amount, &t.Status, &t.Date,
		&t.ClientID, &t.InvoiceID, &t.CostItemID, &t.RecurringExpenseID, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transactions: %w", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("transactions: scan: %w", err)
	}
	return &t, nil
}

// Create inserts a ledger row.
func (r *Repository) Create(ctx context.Context, orgID string, input CreateInput) (*Transaction, error) {
	query := `
		INSERT INTO transactions (
			org_id, type, subtype, category, description, amount, status, date,
			client_id, invoice_id, cost_item_id, recurring_expense_id, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING` + txColumns

	row := r.pool.QueryRow(ctx, query,
		orgID, input.Type, input.Subtype, input.Category, input.Description,
		input.Amount, input.Status, input.Date,
		input.ClientID, input.InvoiceID, input.CostItemID, input.RecurringExpenseID, input.Metadata,
	)
	return scanTransaction(row)
}

// GetByID fetches one ledger row scoped by organization.
func (r *Repository) GetByID(ctx context.Context, orgID string, id int64) (*Transaction, error) {
	query := `SELECT` + txColumns + ` FROM transactions WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`
	return scanTransaction(r.pool.QueryRow(ctx, query, id, orgID))
}

// List returns ledger rows matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, orgID string, filter ListFilter) ([]Transaction, int, error) {
	where := `WHERE org_id = $1`
	args := []any{orgID}
	if !filter.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if filter.Subtype != "" {
		args = append(args, filter.Subtype)
		where += fmt.Sprintf(` AND subtype = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.ClientID != 0 {
		args = append(args, filter.ClientID)
		where += fmt.Sprintf(` AND client_id = $%d`, len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		where += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		where += fmt.Sprintf(` AND date < $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("transactions: count: %w", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT%s FROM transactions %s ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`,
		txColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("transactions: list: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// Update mutates descriptive fields of a ledger row.
func (r *Repository) Update(ctx context.Context, orgID string, id int64, input UpdateInput) (*Transaction, error) {
	query := `
		UPDATE transactions SET
			category = COALESCE($3, category),
			description = COALESCE($4, description),
			status = COALESCE($5, status),
			date = COALESCE($6, date),
			metadata = COALESCE($7, metadata),
			updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL
		RETURNING` + txColumns

	var meta any
	if input.Metadata != nil {
		meta = input.Metadata
	}
	row := r.pool.QueryRow(ctx, query, id, orgID,
		input.Category, input.Description, input.Status, input.Date, meta)
	return scanTransaction(row)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transactions: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transactions: %w", shared.ErrNotFound)
	}
	return nil
}

// SoftDelete stamps deleted_at.
func (r *Repository) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return r.exec(ctx,
		`UPDATE transactions SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID)
}

// Restore clears deleted_at.
func (r *Repository) Restore(ctx context.Context, orgID string, id int64) error {
	return r.exec(ctx,
		`UPDATE transactions SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NOT NULL`,
		id, orgID)
}

func windowClause(w shared.Window, args *[]any) string {
	clause := ""
	if !w.From.IsZero() {
		*args = append(*args, w.From)
		clause += fmt.Sprintf(` AND date >= $%d`, len(*args))
	}
	if !w.To.IsZero() {
		*args = append(*args, w.To)
		clause += fmt.Sprintf(` AND date < $%d`, len(*args))
	}
	return clause
}

// ConfirmedTotals sums CONFIRMED income and expense inside the window.
func (r *Repository) ConfirmedTotals(ctx context.Context, orgID string, w shared.Window) (float64, float64, error) {
	args := []any{orgID}
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0)
		FROM transactions
		WHERE org_id = $1 AND status = 'CONFIRMED' AND deleted_at IS NULL` + windowClause(w, &args)

	var income, expense float64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&income, &expense); err != nil {
		return 0, 0, fmt.Errorf("transactions: confirmed totals: %w", err)
	}
	return income, expense, nil
}

// BreakdownByCategory groups CONFIRMED totals by category and type.
func (r *Repository) BreakdownByCategory(ctx context.Context, orgID string, w shared.Window) ([]CategoryBucket, error) {
	args := []any{orgID}
	query := `
		SELECT COALESCE(NULLIF(category, ''), 'uncategorized'), type, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE org_id = $1 AND status = 'CONFIRMED' AND deleted_at IS NULL` + windowClause(w, &args) + `
		GROUP BY 1, 2
		ORDER BY 3 DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transactions: breakdown by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryBucket
	for rows.Next() {
		var b CategoryBucket
		if err := rows.Scan(&b.Category, &b.Type, &b.Total); err != nil {
			return nil, fmt.Errorf("transactions: breakdown scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BreakdownBySubtype groups CONFIRMED totals by subtype and type.
func (r *Repository) BreakdownBySubtype(ctx context.Context, orgID string, w shared.Window) ([]SubtypeBucket, error) {
	args := []any{orgID}
	query := `
		SELECT subtype, type, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE org_id = $1 AND status = 'CONFIRMED' AND deleted_at IS NULL` + windowClause(w, &args) + `
		GROUP BY 1, 2
		ORDER BY 3 DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transactions: breakdown by subtype: %w", err)
	}
	defer rows.Close()

	var out []SubtypeBucket
	for rows.Next() {
		var b SubtypeBucket
		if err := rows.Scan(&b.Subtype, &b.Type, &b.Total); err != nil {
			return nil, fmt.Errorf("transactions: breakdown scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ExistsForRecurringExpense reports whether a non-deleted, non-cancelled
// expense row for the template already exists inside the window. This is
// the materialization dedup key.
func (r *Repository) ExistsForRecurringExpense(ctx context.Context, orgID string, expenseID int64, w shared.Window) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE org_id = $1 AND recurring_expense_id = $2
			  AND status <> 'CANCELLED' AND deleted_at IS NULL
			  AND date >= $3 AND date < $4
		)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, orgID, expenseID, w.From, w.To).Scan(&exists); err != nil {
		return false, fmt.Errorf("transactions: recurring exists: %w", err)
	}
	return exists, nil
}

// ConfirmedIncomeInWindow sums CONFIRMED income rows inside the window,
// used by revenue projections.
func (r *Repository) ConfirmedIncomeInWindow(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	income, _, err := r.ConfirmedTotals(ctx, orgID, w)
	return income, err
}
