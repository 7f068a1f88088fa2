package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/cli/config"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/secmon-lab/standup/pkg/utils/async"
	"github.com/secmon-lab/standup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdAnalyze(w io.Writer) *cli.Command {
	var input usecase.AnalyzeInput
	var graphCfg config.Graph
	var llmCfg config.LLM
	var repoCfg config.Repository
	var parserCfg config.Parser

	flags := []cli.Flag{
		chatIDFlag(&input.ChatID),
		tokenFlag(&input.AccessToken),
		&cli.StringFlag{
			Name:        "from",
			Usage:       "First day of the analysis (YYYY-MM-DD). Defaults to 6 days before --to",
			Destination: &input.From,
		},
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Last day of the analysis (YYYY-MM-DD). Defaults to today",
			Destination: &input.To,
		},
	}
	flags = append(flags, graphCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, parserCfg.Flags()...)

	return &cli.Command{
		Name:    "analyze",
		Aliases: []string{"a"},
		Usage:   "Analyze the standup updates of a chat and print the report as JSON",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			uc, err := buildUseCases(ctx, repo, &graphCfg, &llmCfg, &parserCfg)
			if err != nil {
				return err
			}

			result, err := uc.Analysis.Analyze(ctx, input)
			if err != nil {
				return goerr.Wrap(err, "failed to analyze chat", goerr.V(usecase.ChatIDKey, input.ChatID))
			}

			// The report is saved in the background
			if err := async.WaitTimeout(30 * time.Second); err != nil {
				logging.Default().Warn("report may not have been saved", "error", err.Error())
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return goerr.Wrap(err, "failed to encode analysis")
			}
			return nil
		},
	}
}
