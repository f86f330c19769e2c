package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/agencydesk/agencydesk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskInvoiceOverdueScan flips OPEN invoices past their due date to OVERDUE.
	TaskInvoiceOverdueScan = "invoices:overdue-scan"
	// TaskInvoiceGenerate runs the monthly contract invoice generation.
	TaskInvoiceGenerate = "invoices:generate-monthly"
	// TaskClientSync recomputes client payment statuses from their invoices.
	TaskClientSync = "clients:financial-sync"
	// TaskExpenseMaterializeMonthly posts the month's recurring expenses.
	TaskExpenseMaterializeMonthly = "expenses:materialize-monthly"
	// TaskExpenseMaterializeAnnual posts the year's recurring expenses.
	TaskExpenseMaterializeAnnual = "expenses:materialize-annual"
)

// OrgPayload scopes a task to one org. An empty OrgID means every org
// with financial data.
type OrgPayload struct {
	OrgID string `json:"orgId,omitempty"`
}

// NewOrgTask constructs an Asynq task carrying an org scope.
func NewOrgTask(taskType string, payload OrgPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func decodeOrgPayload(t *asynq.Task) (OrgPayload, error) {
	var payload OrgPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}

// OrgLister enumerates the orgs a fan-out job should visit.
type OrgLister interface {
	ListOrgIDs(ctx context.Context) ([]string, error)
}

// PoolOrgLister lists orgs straight from the clients table.
type PoolOrgLister struct {
	Pool *pgxpool.Pool
}

// ListOrgIDs returns every org that has at least one client record.
func (l *PoolOrgLister) ListOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := l.Pool.Query(ctx, `SELECT DISTINCT org_id FROM clients WHERE deleted_at IS NULL ORDER BY org_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// resolveOrgs expands an empty payload into the full org list.
func resolveOrgs(ctx context.Context, payload OrgPayload, lister OrgLister) ([]string, error) {
	if payload.OrgID != "" {
		return []string{payload.OrgID}, nil
	}
	if lister == nil {
		return nil, nil
	}
	return lister.ListOrgIDs(ctx)
}
