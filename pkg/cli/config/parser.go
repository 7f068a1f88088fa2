package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/service/parser"
	"github.com/urfave/cli/v3"
)

// Parser holds the path of the standup pattern file
type Parser struct {
	path string
}

func (p *Parser) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "patterns",
			Aliases:     []string{"p"},
			Usage:       "TOML file of standup indicators and project names. Built-in patterns are used when empty",
			Category:    "Parser",
			Sources:     cli.EnvVars("STANDUP_PATTERNS"),
			Destination: &p.path,
		},
	}
}

// Path returns the configured pattern file
func (p *Parser) Path() string {
	return p.path
}

// Patterns loads the pattern file, or the defaults when no file is configured
func (p *Parser) Patterns() (parser.Patterns, error) {
	if p.path == "" {
		return parser.DefaultPatterns(), nil
	}
	patterns, err := parser.LoadPatterns(p.path)
	if err != nil {
		return parser.Patterns{}, goerr.Wrap(err, "failed to load patterns", goerr.V(PathKey, p.path))
	}
	return patterns, nil
}

// Configure compiles the configured patterns
func (p *Parser) Configure() (*parser.Parser, error) {
	patterns, err := p.Patterns()
	if err != nil {
		return nil, err
	}
	ps, err := parser.New(patterns)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile patterns", goerr.V(PathKey, p.path))
	}
	return ps, nil
}
