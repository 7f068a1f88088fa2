package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/model"
)

// ErrNotFound is wrapped by every backend when a record does not exist
var ErrNotFound = goerr.New("not found")

// Repository defines the interface for data persistence
type Repository interface {
	Report() ReportRepository
	Close() error
}

// ReportRepository stores analysis results
type ReportRepository interface {
	// Put saves a report, replacing any report with the same ID
	Put(ctx context.Context, report *model.Report) error

	// Get returns the report or an error wrapping ErrNotFound
	Get(ctx context.Context, id model.ReportID) (*model.Report, error)

	// ListByChat returns up to limit reports of a chat, newest first. limit <= 0 means no limit.
	ListByChat(ctx context.Context, chatID string, limit int) ([]*model.Report, error)

	// DeleteBefore removes reports created before t and returns how many were removed
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
}
