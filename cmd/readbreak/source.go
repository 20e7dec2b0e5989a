package main

import (
	"context"
	"log/slog"

	"mercator-hq/readbreak/pkg/cli"
	"mercator-hq/readbreak/pkg/config"
	"mercator-hq/readbreak/pkg/source"
)

// resolvePipeline turns a pipeline argument, a path or a git:: reference,
// into a local file.
func resolvePipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, ref string) (*source.Resolved, error) {
	res, err := source.NewResolver(&cfg.Sources.Git, logger).Resolve(ctx, ref)
	if err != nil {
		return nil, cli.NewConfigError("pipeline", err.Error())
	}
	return res, nil
}
