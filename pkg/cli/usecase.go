package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/cli/config"
	"github.com/secmon-lab/standup/pkg/domain/interfaces"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

// buildUseCases wires the Graph client, LLM and parser flags into the use cases
func buildUseCases(ctx context.Context, repo interfaces.Repository, graphCfg *config.Graph, llmCfg *config.LLM, parserCfg *config.Parser, extra ...usecase.Option) (*usecase.UseCases, error) {
	gs, err := graphCfg.Configure()
	if err != nil {
		return nil, err
	}

	opts, err := graphCfg.UseCaseOptions()
	if err != nil {
		return nil, err
	}

	p, err := parserCfg.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure parser")
	}
	opts = append(opts, usecase.WithParser(p))

	llmClient, err := llmCfg.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM")
	}
	if llmClient != nil {
		opts = append(opts, usecase.WithLLMClient(llmClient))
		logging.Default().Info("LLM analysis enabled")
	} else {
		logging.Default().Info("Gemini project not configured, reports are computed locally")
	}

	opts = append(opts, extra...)
	return usecase.New(repo, gs, opts...), nil
}
