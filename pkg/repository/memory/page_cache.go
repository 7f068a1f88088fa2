package memory

import (
	"context"
	"sync"

	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/domain/model"
)

// PageCache is an in-process interfaces.PageCache
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]*model.Page
}

var _ interfaces.PageCache = &PageCache{}

func NewPageCache() *PageCache {
	return &PageCache{
		pages: make(map[string]*model.Page),
	}
}

func (c *PageCache) Get(ctx context.Context, chatID string) (*model.Page, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	page, ok := c.pages[chatID]
	if !ok {
		return nil, false, nil
	}
	return copyPage(page), true, nil
}

func (c *PageCache) Put(ctx context.Context, chatID string, page *model.Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages[chatID] = copyPage(page)
	return nil
}

func (c *PageCache) Delete(ctx context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pages, chatID)
	return nil
}

func (c *PageCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages = make(map[string]*model.Page)
	return nil
}

// copyPage copies the update slice. Updates themselves are immutable.
func copyPage(p *model.Page) *model.Page {
	if p == nil {
		return &model.Page{}
	}
	return &model.Page{
		Updates:    append([]*model.StandupUpdate(nil), p.Updates...),
		NextCursor: p.NextCursor,
	}
}
