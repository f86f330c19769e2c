package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agencydesk/agencydesk/internal/jobs"
	"github.com/agencydesk/agencydesk/internal/recurring"
)

// ExpenseMaterializeJob posts recurring expenses into the ledger for one
// billing cycle.
type ExpenseMaterializeJob struct {
	Recurring *recurring.Service
	Orgs      OrgLister
	Reports   CacheInvalidator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Cycle     recurring.Cycle
}

// Handle executes the materialization across the payload's org scope.
func (j *ExpenseMaterializeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Recurring == nil {
		return errors.New("expense materialize: handler not configured")
	}
	payload, err := decodeOrgPayload(t)
	if err != nil {
		return err
	}
	orgs, err := resolveOrgs(ctx, payload, j.Orgs)
	if err != nil {
		return err
	}

	logger := j.logger()
	tracker := j.metrics().Track(j.taskType())
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	created, skipped, failed := 0, 0, 0
	for _, org := range orgs {
		report, err := j.materialize(ctx, org)
		if err != nil {
			logger.Error("materialize run failed", slog.String("org_id", org), slog.Any("error", err))
			resultErr = err
			return resultErr
		}
		j.metrics().AddEntriesPosted(org, len(report.Created))
		created += len(report.Created)
		skipped += len(report.Skipped)
		failed += len(report.Failed)
	}

	if created > 0 {
		invalidateReports(ctx, j.Reports, logger)
	}
	logger.Info("completed expense materialization",
		slog.Int("orgs", len(orgs)),
		slog.Int("created", created),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ExpenseMaterializeJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpenseMaterializeJob) materialize(ctx context.Context, orgID string) (*recurring.MaterializeReport, error) {
	if j.Cycle == recurring.CycleAnnual {
		return j.Recurring.MaterializeAnnually(ctx, orgID)
	}
	return j.Recurring.MaterializeMonthly(ctx, orgID)
}

func (j *ExpenseMaterializeJob) taskType() string {
	if j.Cycle == recurring.CycleAnnual {
		return TaskExpenseMaterializeAnnual
	}
	return TaskExpenseMaterializeMonthly
}

func (j *ExpenseMaterializeJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", j.taskType()))
	}
	return slog.Default().With(slog.String("job", j.taskType()))
}
