package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/service/graph"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Graph holds CLI flags for the Microsoft Graph client and member resolution
type Graph struct {
	baseURL     string
	timeout     time.Duration
	pageSize    int
	emailDomain string
	photos      bool
	timezone    string
}

func (g *Graph) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "graph-base-url",
			Usage:       "Microsoft Graph endpoint",
			Category:    "Graph",
			Value:       graph.DefaultBaseURL,
			Sources:     cli.EnvVars("STANDUP_GRAPH_BASE_URL"),
			Destination: &g.baseURL,
		},
		&cli.DurationFlag{
			Name:        "graph-timeout",
			Usage:       "Timeout of each Graph request",
			Category:    "Graph",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("STANDUP_GRAPH_TIMEOUT"),
			Destination: &g.timeout,
		},
		&cli.IntFlag{
			Name:        "page-size",
			Usage:       "Messages per first page request ($top). 0 uses the Graph default",
			Category:    "Graph",
			Sources:     cli.EnvVars("STANDUP_PAGE_SIZE"),
			Destination: &g.pageSize,
		},
		&cli.StringFlag{
			Name:        "email-domain",
			Usage:       "Domain of synthesized member email addresses",
			Category:    "Graph",
			Value:       model.DefaultEmailDomain,
			Sources:     cli.EnvVars("STANDUP_EMAIL_DOMAIN"),
			Destination: &g.emailDomain,
		},
		&cli.BoolFlag{
			Name:        "photos",
			Usage:       "Download member profile photos",
			Category:    "Graph",
			Sources:     cli.EnvVars("STANDUP_PHOTOS"),
			Destination: &g.photos,
		},
		&cli.StringFlag{
			Name:        "timezone",
			Usage:       "IANA time zone of displayed standup times",
			Category:    "Graph",
			Value:       "UTC",
			Sources:     cli.EnvVars("STANDUP_TIMEZONE"),
			Destination: &g.timezone,
		},
	}
}

func (g Graph) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", g.baseURL),
		slog.Duration("timeout", g.timeout),
		slog.Int("page_size", g.pageSize),
		slog.String("email_domain", g.emailDomain),
		slog.Bool("photos", g.photos),
		slog.String("timezone", g.timezone),
	)
}

// Configure creates the Graph client
func (g *Graph) Configure() (graph.Service, error) {
	var opts []graph.Option
	if g.baseURL != "" {
		opts = append(opts, graph.WithBaseURL(g.baseURL))
	}
	if g.timeout > 0 {
		opts = append(opts, graph.WithTimeout(g.timeout))
	}

	gs, err := graph.New(opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create graph client")
	}
	return gs, nil
}

// UseCaseOptions returns the use case options derived from the Graph flags
func (g *Graph) UseCaseOptions() ([]usecase.Option, error) {
	if g.pageSize < 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "page size must not be negative", goerr.V(FlagKey, "page-size"), goerr.V(ValueKey, g.pageSize))
	}

	loc := time.UTC
	if g.timezone != "" {
		l, err := time.LoadLocation(g.timezone)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "unknown time zone", goerr.V(LocationKey, g.timezone), goerr.V("cause", err.Error()))
		}
		loc = l
	}

	return []usecase.Option{
		usecase.WithPageSize(g.pageSize),
		usecase.WithEmailDomain(g.emailDomain),
		usecase.WithPhotos(g.photos),
		usecase.WithLocation(loc),
	}, nil
}
