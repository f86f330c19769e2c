package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencydesk/agencydesk/internal/platform/db"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `
	id, org_id, client_id, number, status, issue_date, due_date, paid_at, cancelled_at,
	subtotal, discount, tax, total, notes, installment_no,
	created_at, updated_at, deleted_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.OrgID, &inv.ClientID, &inv.Number, &inv.Status,
		&inv.IssueDate, &inv.DueDate, &inv.PaidAt, &inv.CancelledAt,
		&inv.Subtotal, &inv.Discount, &inv.Tax, &inv.Total, &inv.Notes, &inv.InstallmentNo,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoices: %w", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("invoices: scan: %w", err)
	}
	return &inv, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// NextNumber computes the next per-org-per-year invoice number, format
// YYYY-NNNN. The unique constraint on (org_id, number) catches the race
// between concurrent readers; callers retry on ErrDuplicateNumber.
func (r *Repository) NextNumber(ctx context.Context, orgID string, year int) (string, error) {
	query := `
		SELECT COALESCE(MAX(SUBSTRING(number FROM 6)::INT), 0)
		FROM invoices
		WHERE org_id = $1 AND number LIKE $2`

	var max int
	if err := r.pool.QueryRow(ctx, query, orgID, fmt.Sprintf("%d-%%", year)).Scan(&max); err != nil {
		return "", fmt.Errorf("invoices: next number: %w", err)
	}
	return fmt.Sprintf("%d-%04d", year, max+1), nil
}

// Create persists the invoice and its items in one transaction.
func (r *Repository) Create(ctx context.Context, orgID string, row CreateRow) (*Invoice, error) {
	var created *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO invoices (
				org_id, client_id, number, status, issue_date, due_date,
				subtotal, discount, tax, total, notes, installment_no,
				created_at, updated_at
			) VALUES ($1, $2, $3, 'OPEN', $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
			RETURNING` + invoiceColumns

		inv, err := scanInvoice(tx.QueryRow(ctx, query,
			orgID, row.ClientID, row.Number, row.IssueDate, row.DueDate,
			row.Subtotal, row.Discount, row.Tax, row.Total, row.Notes, row.InstallmentNo,
		))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateNumber
			}
			return err
		}

		for _, item := range row.Items {
			var line Item
			err := tx.QueryRow(ctx, `
				INSERT INTO invoice_items (invoice_id, description, quantity, unit_amount, total)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id, invoice_id, description, quantity, unit_amount, total`,
				inv.ID, item.Description, item.Quantity, item.UnitAmount, item.Total,
			).Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity, &line.UnitAmount, &line.Total)
			if err != nil {
				return fmt.Errorf("invoices: insert item: %w", err)
			}
			inv.Items = append(inv.Items, line)
		}
		created = inv
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateNumber) {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return created, nil
}

func (r *Repository) loadItems(ctx context.Context, invoiceID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_amount, total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: load items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitAmount, &it.Total); err != nil {
			return nil, fmt.Errorf("invoices: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID fetches one invoice with its items.
func (r *Repository) GetByID(ctx context.Context, orgID string, id int64, includeDeleted bool) (*Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = $1 AND org_id = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id, orgID))
	if err != nil {
		return nil, err
	}
	inv.Items, err = r.loadItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns invoices matching the filter plus the total count. Items are
// not loaded on listings.
func (r *Repository) List(ctx context.Context, orgID string, filter ListFilter) ([]Invoice, int, error) {
	where := `WHERE org_id = $1`
	args := []any{orgID}
	if !filter.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.ClientID != 0 {
		args = append(args, filter.ClientID)
		where += fmt.Sprintf(` AND client_id = $%d`, len(args))
	}
	if !filter.DueFrom.IsZero() {
		args = append(args, filter.DueFrom)
		where += fmt.Sprintf(` AND due_date >= $%d`, len(args))
	}
	if !filter.DueTo.IsZero() {
		args = append(args, filter.DueTo)
		where += fmt.Sprintf(` AND due_date < $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT%s FROM invoices %s ORDER BY due_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

// MarkPaid flips the invoice to PAID and inserts the linked ledger entry in
// one transaction. The update is guarded on status so a concurrent approval
// cannot double-book the payment.
func (r *Repository) MarkPaid(ctx context.Context, orgID string, id int64, paidAt time.Time, entry LedgerEntry) (*Invoice, int64, error) {
	var updated *Invoice
	var txID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE invoices
			SET status = 'PAID', paid_at = $3, updated_at = NOW()
			WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL AND status IN ('OPEN', 'OVERDUE')
			RETURNING` + invoiceColumns

		inv, err := scanInvoice(tx.QueryRow(ctx, query, id, orgID, paidAt))
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: invoice not payable", shared.ErrInvalidTransition)
			}
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO transactions (
				org_id, type, subtype, category, description, amount, status, date,
				client_id, invoice_id, metadata, created_at, updated_at
			) VALUES ($1, 'INCOME', 'INVOICE_PAYMENT', 'invoice', $2, $3, 'CONFIRMED', $4, $5, $6, $7, NOW(), NOW())
			RETURNING id`,
			orgID, entry.Description, entry.Amount, entry.Date, entry.ClientID, inv.ID, entry.Metadata,
		).Scan(&txID)
		if err != nil {
			return fmt.Errorf("invoices: insert payment entry: %w", err)
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	updated.Items, err = r.loadItems(ctx, updated.ID)
	if err != nil {
		return nil, 0, err
	}
	return updated, txID, nil
}

// Cancel flips the invoice to CANCELLED and replaces the notes with the
// appended cancellation reason computed by the service.
func (r *Repository) Cancel(ctx context.Context, orgID string, id int64, notes string, at time.Time) (*Invoice, error) {
	query := `
		UPDATE invoices
		SET status = 'CANCELLED', cancelled_at = $3, notes = $4, updated_at = NOW()
		WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL AND status IN ('OPEN', 'OVERDUE')
		RETURNING` + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id, orgID, at, notes))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: invoice not cancellable", shared.ErrInvalidTransition)
		}
		return nil, err
	}
	return inv, nil
}

// MarkOverdue flips OPEN invoices past their due date to OVERDUE.
func (r *Repository) MarkOverdue(ctx context.Context, orgID string, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'OVERDUE', updated_at = NOW()
		WHERE org_id = $1 AND deleted_at IS NULL AND status = 'OPEN' AND due_date < $2`,
		orgID, now)
	if err != nil {
		return 0, fmt.Errorf("invoices: mark overdue: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("invoices: exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoices: %w", shared.ErrNotFound)
	}
	return nil
}

// SoftDelete stamps deleted_at.
func (r *Repository) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return r.exec(ctx,
		`UPDATE invoices SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NULL`,
		id, orgID)
}

// Restore clears deleted_at.
func (r *Repository) Restore(ctx context.Context, orgID string, id int64) error {
	return r.exec(ctx,
		`UPDATE invoices SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND org_id = $2 AND deleted_at IS NOT NULL`,
		id, orgID)
}

// SumOutstanding sums non-PAID, non-CANCELLED invoice totals due inside
// the window.
func (r *Repository) SumOutstanding(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	args := []any{orgID}
	query := `
		SELECT COALESCE(SUM(total), 0) FROM invoices
		WHERE org_id = $1 AND deleted_at IS NULL AND status IN ('OPEN', 'OVERDUE')`
	if !w.From.IsZero() {
		args = append(args, w.From)
		query += fmt.Sprintf(` AND due_date >= $%d`, len(args))
	}
	if !w.To.IsZero() {
		args = append(args, w.To)
		query += fmt.Sprintf(` AND due_date < $%d`, len(args))
	}

	var total float64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("invoices: sum outstanding: %w", err)
	}
	return total, nil
}

// CountInstallments counts installment invoices for the client, cancelled
// ones excluded.
func (r *Repository) CountInstallments(ctx context.Context, orgID string, clientID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE org_id = $1 AND client_id = $2 AND installment_no IS NOT NULL
		  AND status <> 'CANCELLED' AND deleted_at IS NULL`,
		orgID, clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("invoices: count installments: %w", err)
	}
	return count, nil
}

// ExistsDueInWindow reports whether the client has a non-cancelled invoice
// due inside the window.
func (r *Repository) ExistsDueInWindow(ctx context.Context, orgID string, clientID int64, w shared.Window) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM invoices
			WHERE org_id = $1 AND client_id = $2 AND deleted_at IS NULL
			  AND status <> 'CANCELLED' AND due_date >= $3 AND due_date < $4
		)`, orgID, clientID, w.From, w.To).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("invoices: exists due in window: %w", err)
	}
	return exists, nil
}

// ExistsDueOn reports whether the client has a non-cancelled invoice due on
// the given calendar day.
func (r *Repository) ExistsDueOn(ctx context.Context, orgID string, clientID int64, due time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM invoices
			WHERE org_id = $1 AND client_id = $2 AND deleted_at IS NULL
			  AND status <> 'CANCELLED' AND due_date::date = $3::date
		)`, orgID, clientID, due).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("invoices: exists due on: %w", err)
	}
	return exists, nil
}

// StatusCounts returns how many open and overdue invoices a client has.
func (r *Repository) StatusCounts(ctx context.Context, orgID string, clientID int64) (int, int, error) {
	var open, overdue int
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'OPEN'),
			COUNT(*) FILTER (WHERE status = 'OVERDUE')
		FROM invoices
		WHERE org_id = $1 AND client_id = $2 AND deleted_at IS NULL`,
		orgID, clientID).Scan(&open, &overdue)
	if err != nil {
		return 0, 0, fmt.Errorf("invoices: status counts: %w", err)
	}
	return open, overdue, nil
}
