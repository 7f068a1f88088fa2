package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/service/parser"
	"github.com/secmon-lab/standup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate(w io.Writer) *cli.Command {
	var path string

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a standup pattern file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "patterns",
				Aliases:     []string{"p"},
				Usage:       "TOML file of standup indicators and project names",
				Required:    true,
				Sources:     cli.EnvVars("STANDUP_PATTERNS"),
				Destination: &path,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			patterns, err := parser.LoadPatterns(path)
			if err != nil {
				return goerr.Wrap(err, "pattern validation failed")
			}
			if _, err := parser.New(patterns); err != nil {
				return goerr.Wrap(err, "pattern validation failed")
			}

			logging.Default().Info("Pattern validation passed",
				"path", path,
				"indicator_count", len(patterns.Indicators),
				"project_count", len(patterns.Projects),
			)
			fmt.Fprintf(w, "%s: %d indicators, %d projects\n", path, len(patterns.Indicators), len(patterns.Projects))
			return nil
		},
	}
}
