package parser

import (
	"os"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// Patterns is the versioned, user tunable part of standup detection
type Patterns struct {
	// Indicators are case-insensitive regular expressions. One match classifies a message as a standup.
	Indicators []string `toml:"indicators"`
	// Projects are known project names, matched as a last resort and stripped as item prefixes
	Projects []string `toml:"projects"`
	// UnknownProject is the label used when no project can be extracted
	UnknownProject string `toml:"unknown_project"`
}

// DefaultPatterns returns the built-in patterns
func DefaultPatterns() Patterns {
	return Patterns{
		Indicators: []string{
			`project/team name`,
			`accomplishments?\s+yesterday`,
			`what were your accomplishments`,
			`plan to work on today`,
			`what do you plan`,
			`tasks?\s+completed`,
			`carry\s+forward`,
			`pending from yesterday`,
		},
		Projects:       []string{"hitachi", "froala", "ovation"},
		UnknownProject: "Unknown Project",
	}
}

// LoadPatterns reads a TOML file. Lists present in the file replace the defaults.
func LoadPatterns(path string) (Patterns, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, goerr.Wrap(err, "failed to read pattern file", goerr.V(PathKey, path))
	}

	var p Patterns
	if err := toml.Unmarshal(raw, &p); err != nil {
		return Patterns{}, goerr.Wrap(ErrInvalidPatterns, "failed to parse pattern file",
			goerr.V(PathKey, path), goerr.V("cause", err.Error()))
	}

	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return Patterns{}, goerr.Wrap(err, "invalid pattern file", goerr.V(PathKey, path))
	}
	return p, nil
}

func (p Patterns) withDefaults() Patterns {
	def := DefaultPatterns()
	if len(p.Indicators) == 0 {
		p.Indicators = def.Indicators
	}
	if len(p.Projects) == 0 {
		p.Projects = def.Projects
	}
	if p.UnknownProject == "" {
		p.UnknownProject = def.UnknownProject
	}
	return p
}

// Validate compiles every indicator and checks project names
func (p Patterns) Validate() error {
	if len(p.Indicators) == 0 {
		return goerr.Wrap(ErrInvalidPatterns, "at least one indicator is required")
	}
	for i, ind := range p.Indicators {
		if strings.TrimSpace(ind) == "" {
			return goerr.Wrap(ErrInvalidPatterns, "empty indicator", goerr.V(IndexKey, i))
		}
		if _, err := regexp.Compile("(?i)" + ind); err != nil {
			return goerr.Wrap(ErrInvalidPatterns, "indicator does not compile",
				goerr.V(IndexKey, i), goerr.V(PatternKey, ind), goerr.V("cause", err.Error()))
		}
	}
	for i, name := range p.Projects {
		if strings.TrimSpace(name) == "" {
			return goerr.Wrap(ErrInvalidPatterns, "empty project name", goerr.V(IndexKey, i))
		}
	}
	return nil
}
