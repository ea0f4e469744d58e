// Package app provides the QA server application.
package app

import (
	"context"
	"fmt"

	"github.com/kart-io/campus-qa/cmd/qa-server/app/options"
	"github.com/kart-io/campus-qa/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "qa-server"

	commandDesc = `Campus QA Service

Answers questions about the university website from an index of its pages.

This server provides:
  - Grounded answers with citations to the source pages
  - Per-device and global usage limits
  - Answer feedback collection and satisfaction stats
  - Optional on-demand ingestion of new URLs`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Campus question answering API"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func(_ []string) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// Run installs its own signal handling for graceful shutdown.
		ctx := context.Background()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}
