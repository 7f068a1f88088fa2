package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/model"
)

type reportRepository struct {
	mu      sync.RWMutex
	reports map[model.ReportID]*model.Report
}

func newReportRepository() *reportRepository {
	return &reportRepository{
		reports: make(map[model.ReportID]*model.Report),
	}
}

func (r *reportRepository) Put(ctx context.Context, report *model.Report) error {
	if report == nil || report.ID == "" {
		return goerr.New("report ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	reportCopy := *report
	r.reports[report.ID] = &reportCopy
	return nil
}

func (r *reportRepository) Get(ctx context.Context, id model.ReportID) (*model.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "report not found", goerr.V(model.ReportIDKey, id))
	}

	reportCopy := *report
	return &reportCopy, nil
}

func (r *reportRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*model.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reports []*model.Report
	for _, report := range r.reports {
		if report.ChatID != chatID {
			continue
		}
		reportCopy := *report
		reports = append(reports, &reportCopy)
	}

	slices.SortFunc(reports, func(a, b *model.Report) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (r *reportRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, report := range r.reports {
		if report.CreatedAt.Before(t) {
			delete(r.reports, id)
			deleted++
		}
	}
	return deleted, nil
}
