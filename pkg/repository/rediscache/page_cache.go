package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/domain/model"
)

const (
	DefaultKeyPrefix = "standup:page:"

	scanBatch = 100
)

// PageCache stores first pages in Redis so that several server replicas share them
type PageCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ interfaces.PageCache = &PageCache{}

type Option func(*PageCache)

// WithKeyPrefix sets the key namespace. Clear only removes keys under it.
func WithKeyPrefix(prefix string) Option {
	return func(c *PageCache) {
		c.prefix = prefix
	}
}

// WithTTL expires entries after d. Zero keeps them until deleted.
func WithTTL(d time.Duration) Option {
	return func(c *PageCache) {
		c.ttl = d
	}
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, opts *redis.Options, options ...Option) (*PageCache, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", opts.Addr))
	}

	return NewWithClient(client, options...), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, options ...Option) *PageCache {
	c := &PageCache{
		client: client,
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *PageCache) key(chatID string) string {
	return c.prefix + chatID
}

func (c *PageCache) Get(ctx context.Context, chatID string) (*model.Page, bool, error) {
	data, err := c.client.Get(ctx, c.key(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to get page from redis", goerr.V(model.ChatIDKey, chatID))
	}

	var page model.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false, goerr.Wrap(err, "failed to unmarshal cached page", goerr.V(model.ChatIDKey, chatID))
	}
	return &page, true, nil
}

func (c *PageCache) Put(ctx context.Context, chatID string, page *model.Page) error {
	if page == nil {
		page = &model.Page{}
	}
	data, err := json.Marshal(page)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal page", goerr.V(model.ChatIDKey, chatID))
	}

	if err := c.client.Set(ctx, c.key(chatID), data, c.ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to set page in redis", goerr.V(model.ChatIDKey, chatID))
	}
	return nil
}

func (c *PageCache) Delete(ctx context.Context, chatID string) error {
	if err := c.client.Del(ctx, c.key(chatID)).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete page from redis", goerr.V(model.ChatIDKey, chatID))
	}
	return nil
}

func (c *PageCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return goerr.Wrap(err, "failed to scan cached pages", goerr.V("prefix", c.prefix))
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return goerr.Wrap(err, "failed to delete cached pages", goerr.V("count", len(keys)))
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *PageCache) Close() error {
	return c.client.Close()
}
