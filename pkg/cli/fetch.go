package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/cli/config"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/repository/memory"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func tokenFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "token",
		Usage:       "Microsoft Graph access token",
		Required:    true,
		Sources:     cli.EnvVars("STANDUP_ACCESS_TOKEN"),
		Destination: dst,
	}
}

func chatIDFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "chat-id",
		Usage:       "Teams chat ID",
		Required:    true,
		Sources:     cli.EnvVars("STANDUP_CHAT_ID"),
		Destination: dst,
	}
}

func cmdFetch(w io.Writer) *cli.Command {
	var chatID string
	var token string
	var cursor string
	var all bool
	var asJSON bool
	var graphCfg config.Graph
	var parserCfg config.Parser

	flags := []cli.Flag{
		chatIDFlag(&chatID),
		tokenFlag(&token),
		&cli.StringFlag{
			Name:        "cursor",
			Usage:       "Cursor of the page to fetch, as returned in nextCursor",
			Destination: &cursor,
		},
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "Follow every page of the chat",
			Destination: &all,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the page as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, graphCfg.Flags()...)
	flags = append(flags, parserCfg.Flags()...)

	return &cli.Command{
		Name:    "fetch",
		Aliases: []string{"f"},
		Usage:   "Fetch and parse the standup updates of a chat",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if all && cursor != "" {
				return goerr.New("--all and --cursor cannot be combined")
			}

			uc, err := buildUseCases(ctx, memory.New(), &graphCfg, &config.LLM{}, &parserCfg)
			if err != nil {
				return err
			}

			var page *model.Page
			if all {
				page, err = uc.Standup.FetchAll(ctx, chatID, token, usecase.DefaultFetchAllPageSize)
			} else {
				page, err = uc.Standup.FetchPage(ctx, chatID, token, cursor)
			}
			if err != nil {
				return goerr.Wrap(err, "failed to fetch standups", goerr.V(usecase.ChatIDKey, chatID))
			}

			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(page); err != nil {
					return goerr.Wrap(err, "failed to encode page")
				}
				return nil
			}

			printPage(w, page)
			return nil
		},
	}
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgHiWhite, color.Bold)
	doneColor   = color.New(color.FgGreen)
	pendColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.FgHiBlack)
)

func printPage(w io.Writer, page *model.Page) {
	if len(page.Updates) == 0 {
		dimColor.Fprintln(w, "No standup updates found")
	}

	for _, u := range page.Updates {
		name := "Unknown"
		if u.Member != nil {
			name = u.Member.Name
		}
		headerColor.Fprintf(w, "%s %s  %s\n", u.Date, u.Time, name)
		fmt.Fprintf(w, "  %s %s\n", labelColor.Sprint("Project:"), u.Project)

		labelColor.Fprintln(w, "  Accomplishments:")
		for _, a := range u.Accomplishments {
			fmt.Fprintf(w, "    - %s\n", a)
		}

		if u.TasksCompleted {
			doneColor.Fprintln(w, "  All planned tasks completed")
		} else {
			line := "  Carry forward: " + u.CarryForward
			if u.CarryForwardReason != "" {
				line += " (" + u.CarryForwardReason + ")"
			}
			pendColor.Fprintln(w, strings.TrimRight(line, " "))
		}

		labelColor.Fprintln(w, "  Today:")
		for _, p := range u.Plans {
			fmt.Fprintf(w, "    - %s\n", p)
		}
		fmt.Fprintln(w)
	}

	if page.HasNext() {
		dimColor.Fprintf(w, "next cursor: %s\n", page.NextCursor)
	}
}
