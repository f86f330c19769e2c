package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/agencydesk/agencydesk/internal/automation"
	jobmetrics "github.com/agencydesk/agencydesk/internal/jobs"
)

// ClientSyncJob recomputes each client's payment status from their
// invoice book.
type ClientSyncJob struct {
	Automation *automation.Service
	Orgs       OrgLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// Handle executes the sync across the payload's org scope.
func (j *ClientSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Automation == nil {
		return errors.New("client sync: handler not configured")
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
	tracker := j.metrics().Track(TaskClientSync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	changed := 0
	for _, org := range orgs {
		synced, err := j.Automation.SyncClientFinancialData(ctx, org)
		if err != nil {
			logger.Error("client sync failed", slog.String("org_id", org), slog.Any("error", err))
			resultErr = err
			return resultErr
		}
		changed += len(synced)
	}

	logger.Info("completed client sync",
		slog.Int("orgs", len(orgs)),
		slog.Int("clients_changed", changed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ClientSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ClientSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskClientSync))
	}
	return slog.Default().With(slog.String("job", TaskClientSync))
}
