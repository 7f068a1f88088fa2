package usecase

import (
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/repository/memory"
	"github.com/secmon-lab/standup/pkg/service/graph"
	"github.com/secmon-lab/standup/pkg/service/parser"
)

type UseCases struct {
	repo        interfaces.Repository
	graph       graph.Service
	cache       interfaces.PageCache
	llmClient   gollem.LLMClient
	parser      *parser.Parser
	emailDomain string
	photos      bool
	location    *time.Location
	pageSize    int
	now         func() time.Time

	Parser   *ParserUseCase
	Standup  *StandupUseCase
	Analysis *AnalysisUseCase
}

type Option func(*UseCases)

// WithPageCache replaces the in-process first page cache
func WithPageCache(cache interfaces.PageCache) Option {
	return func(uc *UseCases) {
		uc.cache = cache
	}
}

// WithLLMClient enables LLM analysis. Without it reports are computed locally.
func WithLLMClient(client gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = client
	}
}

func WithParser(p *parser.Parser) Option {
	return func(uc *UseCases) {
		uc.parser = p
	}
}

// WithEmailDomain sets the domain of synthesized member addresses
func WithEmailDomain(domain string) Option {
	return func(uc *UseCases) {
		uc.emailDomain = domain
	}
}

// WithPhotos enables profile photo downloads during member prefetch
func WithPhotos(enabled bool) Option {
	return func(uc *UseCases) {
		uc.photos = enabled
	}
}

// WithLocation sets the time zone of StandupUpdate.Time
func WithLocation(loc *time.Location) Option {
	return func(uc *UseCases) {
		uc.location = loc
	}
}

// WithPageSize sets $top of first page requests. Zero leaves the Graph default.
func WithPageSize(n int) Option {
	return func(uc *UseCases) {
		uc.pageSize = n
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, gs graph.Service, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:        repo,
		graph:       gs,
		emailDomain: model.DefaultEmailDomain,
		location:    time.UTC,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.cache == nil {
		uc.cache = memory.NewPageCache()
	}
	if uc.parser == nil {
		uc.parser = parser.Default()
	}

	dir := newDirectory(gs, uc.emailDomain, uc.photos)
	uc.Parser = newParserUseCase(uc.parser, dir, uc.location)
	uc.Standup = NewStandupUseCase(gs, uc.Parser, uc.cache, uc.pageSize)
	uc.Analysis = NewAnalysisUseCase(uc.Standup, repo, uc.llmClient, uc.now)

	return uc
}
