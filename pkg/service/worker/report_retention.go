package worker

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/metrics"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

// ReportRetentionWorker periodically deletes stored analysis reports older than the retention period
//
// Architecture assumptions:
// - Deleting the same expired report twice is harmless, so replicas need no coordination
type ReportRetentionWorker struct {
	repo      interfaces.Repository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

type RetentionOption func(*ReportRetentionWorker)

// WithRetentionClock replaces time.Now
func WithRetentionClock(now func() time.Time) RetentionOption {
	return func(w *ReportRetentionWorker) {
		w.now = now
	}
}

// NewReportRetentionWorker creates a worker that keeps reports for retention, checking every interval
func NewReportRetentionWorker(repo interfaces.Repository, retention, interval time.Duration, opts ...RetentionOption) *ReportRetentionWorker {
	w := &ReportRetentionWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background cleanup loop without blocking
func (w *ReportRetentionWorker) Start(ctx context.Context) error {
	if w.retention <= 0 || w.interval <= 0 {
		return goerr.New("retention and interval must be positive",
			goerr.V("retention", w.retention.String()),
			goerr.V("interval", w.interval.String()))
	}

	logging.Default().Info("Report retention worker starting",
		"retention", w.retention.String(),
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *ReportRetentionWorker) Stop() {
	logging.Default().Info("Report retention worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Report retention worker stopped")
}

func (w *ReportRetentionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if _, err := w.Cleanup(ctx); err != nil {
		logging.Default().Error("Initial report cleanup failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				logging.Default().Error("Report cleanup failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Report retention worker context cancelled")
			return
		}
	}
}

// Cleanup runs one deletion cycle and returns the number of removed reports
func (w *ReportRetentionWorker) Cleanup(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.retention)

	deleted, err := w.repo.Report().DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to delete expired reports", goerr.V("cutoff", cutoff))
	}
	metrics.ReportsDeletedTotal.Add(float64(deleted))

	if deleted > 0 {
		logging.Default().Info("Expired reports deleted",
			"count", deleted,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
