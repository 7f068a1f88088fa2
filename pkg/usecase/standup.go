package usecase

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/metrics"
	"github.com/secmon-lab/standup/pkg/service/graph"
	"github.com/secmon-lab/standup/pkg/utils/errutil"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

// DefaultFetchAllPageSize is $top of FetchAll when none is given
const DefaultFetchAllPageSize = 50

// StandupUseCase fetches chat messages page by page and keeps the first page of each chat cached
type StandupUseCase struct {
	graph    graph.Service
	parser   *ParserUseCase
	cache    interfaces.PageCache
	pageSize int

	tokenMu     sync.Mutex
	tokenDigest [sha256.Size]byte
	hasToken    bool
}

func NewStandupUseCase(gs graph.Service, p *ParserUseCase, cache interfaces.PageCache, pageSize int) *StandupUseCase {
	return &StandupUseCase{
		graph:    gs,
		parser:   p,
		cache:    cache,
		pageSize: pageSize,
	}
}

// FetchPage fetches and parses one page. An empty token yields an empty page without
// any request. A cursor may be a full next link or a bare skip token. Only the first
// page, fetched without cursor, is written to the cache. The cache is never read here.
func (uc *StandupUseCase) FetchPage(ctx context.Context, chatID, token, cursor string) (*model.Page, error) {
	if token == "" {
		logging.From(ctx).Warn("no access token, skipping fetch", "chat_id", chatID)
		return &model.Page{}, nil
	}
	if chatID == "" && cursor == "" {
		return nil, goerr.Wrap(ErrMissingChatID, "chat ID is required to fetch messages")
	}

	uc.observeToken(ctx, token)

	top := 0
	if cursor == "" {
		top = uc.pageSize
	}
	pageURL := uc.graph.MessagesURL(chatID, cursor, top)

	resp, err := uc.graph.ListMessages(ctx, token, pageURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch messages",
			goerr.V(ChatIDKey, chatID),
			goerr.V(CursorKey, cursor))
	}
	metrics.MessagesFetchedTotal.Add(float64(len(resp.Messages)))

	page := &model.Page{
		Updates:    uc.parser.ParseMessages(ctx, token, resp.Messages),
		NextCursor: resp.NextLink,
	}

	if cursor == "" {
		if err := uc.cache.Put(ctx, chatID, page); err != nil {
			_ = errutil.Handle(ctx, err, "failed to cache first page")
		}
	}

	return page, nil
}

// CachedPage returns the cached first page of a chat. Cache backend errors count as a miss.
func (uc *StandupUseCase) CachedPage(ctx context.Context, chatID string) (*model.Page, bool) {
	page, ok, err := uc.cache.Get(ctx, chatID)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to read page cache")
		ok = false
	}

	if !ok {
		metrics.PageCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.PageCacheTotal.WithLabelValues("hit").Inc()
	return page, true
}

// ClearCache drops the cached page of chatID, or of every chat when chatID is empty
func (uc *StandupUseCase) ClearCache(ctx context.Context, chatID string) error {
	if chatID == "" {
		if err := uc.cache.Clear(ctx); err != nil {
			return goerr.Wrap(err, "failed to clear page cache")
		}
		return nil
	}

	if err := uc.cache.Delete(ctx, chatID); err != nil {
		return goerr.Wrap(err, "failed to delete cached page", goerr.V(ChatIDKey, chatID))
	}
	return nil
}

// Refresh drops the chat's cached page and every resolved member, then fetches the first page
func (uc *StandupUseCase) Refresh(ctx context.Context, chatID, token string) (*model.Page, error) {
	if err := uc.ClearCache(ctx, chatID); err != nil {
		return nil, err
	}
	uc.parser.ClearUserCache()

	return uc.FetchPage(ctx, chatID, token, "")
}

// FetchAll follows next links until the last page and caches the combined result
func (uc *StandupUseCase) FetchAll(ctx context.Context, chatID, token string, pageSize int) (*model.Page, error) {
	if token == "" {
		return nil, goerr.Wrap(ErrMissingToken, "access token is required to fetch full history", goerr.V(ChatIDKey, chatID))
	}
	if chatID == "" {
		return nil, goerr.Wrap(ErrMissingChatID, "chat ID is required to fetch full history")
	}
	if pageSize <= 0 {
		pageSize = DefaultFetchAllPageSize
	}

	uc.observeToken(ctx, token)

	var (
		messages []*model.ChatMessage
		pages    int
	)
	for resp, err := range uc.graph.MessagePages(ctx, token, uc.graph.MessagesURL(chatID, "", pageSize)) {
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch message page",
				goerr.V(ChatIDKey, chatID),
				goerr.V("page", pages+1))
		}
		pages++
		messages = append(messages, resp.Messages...)
	}
	metrics.MessagesFetchedTotal.Add(float64(len(messages)))

	logging.From(ctx).Info("fetched full chat history",
		"chat_id", chatID,
		"pages", pages,
		"messages", len(messages),
	)

	page := &model.Page{
		Updates: uc.parser.ParseMessages(ctx, token, messages),
	}
	if err := uc.cache.Put(ctx, chatID, page); err != nil {
		_ = errutil.Handle(ctx, err, "failed to cache full history")
	}

	return page, nil
}

// TestConnection reports whether the chat can be read with token
func (uc *StandupUseCase) TestConnection(ctx context.Context, chatID, token string) bool {
	if token == "" {
		logging.From(ctx).Warn("no access token for connection test", "chat_id", chatID)
		return false
	}

	if _, err := uc.graph.GetChat(ctx, token, chatID); err != nil {
		logging.From(ctx).Warn("connection test failed", "chat_id", chatID, "error", err.Error())
		return false
	}
	return true
}

// GetChatInfo returns chat metadata
func (uc *StandupUseCase) GetChatInfo(ctx context.Context, chatID, token string) (*graph.Chat, error) {
	if token == "" {
		return nil, goerr.Wrap(ErrMissingToken, "access token is required to get chat info", goerr.V(ChatIDKey, chatID))
	}

	chat, err := uc.graph.GetChat(ctx, token, chatID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch chat info", goerr.V(ChatIDKey, chatID))
	}
	return chat, nil
}

// ListMembers returns every member of the chat
func (uc *StandupUseCase) ListMembers(ctx context.Context, chatID, token string) ([]*model.TeamMember, error) {
	if token == "" {
		return nil, goerr.Wrap(ErrMissingToken, "access token is required to list members", goerr.V(ChatIDKey, chatID))
	}

	chatMembers, err := uc.graph.ListChatMembers(ctx, token, chatID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chat members", goerr.V(ChatIDKey, chatID))
	}

	members := make([]*model.TeamMember, 0, len(chatMembers))
	for _, cm := range chatMembers {
		id := cm.UserID
		if id == "" {
			id = cm.ID
		}
		if cached, ok := uc.parser.CachedUser(id); ok {
			members = append(members, cached)
			continue
		}

		m := model.FallbackMember(id, cm.DisplayName, uc.parser.dir.emailDomain)
		if cm.Email != "" {
			m.Email = cm.Email
		}
		members = append(members, m)
	}
	return members, nil
}

// observeToken clears both caches when a different token than the previous one arrives
func (uc *StandupUseCase) observeToken(ctx context.Context, token string) {
	digest := sha256.Sum256([]byte(token))

	uc.tokenMu.Lock()
	changed := uc.hasToken && digest != uc.tokenDigest
	uc.tokenDigest = digest
	uc.hasToken = true
	uc.tokenMu.Unlock()

	if !changed {
		return
	}

	logging.From(ctx).Info("access token changed, clearing caches")
	if err := uc.cache.Clear(ctx); err != nil {
		_ = errutil.Handle(ctx, err, "failed to clear page cache on token change")
	}
	uc.parser.ClearUserCache()
}
