package interfaces

import (
	"context"

	"github.com/secmon-lab/standup/pkg/domain/model"
)

// PageCache keeps the most recent first page of parsed updates per chat.
// Entries live until they are deleted or cleared.
type PageCache interface {
	// Get returns the cached page. The bool is false on a miss.
	Get(ctx context.Context, chatID string) (*model.Page, bool, error)
	Put(ctx context.Context, chatID string, page *model.Page) error
	Delete(ctx context.Context, chatID string) error
	// Clear removes every cached chat
	Clear(ctx context.Context) error
}
