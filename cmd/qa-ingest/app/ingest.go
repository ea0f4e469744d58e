// Package app provides the ingestion command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/campus-qa/cmd/qa-ingest/app/options"
	"github.com/kart-io/campus-qa/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "qa-ingest"

	commandDesc = `Campus site ingestion

Fetches every seed URL, follows same-site PDF links, splits the text into
passages and upserts them into the index. Seed URLs come from seed files
(one URL per line, # starts a comment) and from positional arguments.
Local .pdf and .txt files under --raw-dir are indexed as well, with
file:// source URLs. --rebuild drops the collection first.

Re-running with the same seeds is safe: passages are keyed by URL and
position, so unchanged pages overwrite themselves.`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewIngestOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Index campus web pages for question answering"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.IngestOptions) app.RunFunc {
	return func(args []string) error {
		cfg, err := opts.Config(args)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := cfg.RunIngest(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d passages from %d documents (%d URLs, %d failures) in %s\n",
			report.Passages, len(report.Documents), report.URLs, len(report.Failures), report.Duration)
		return nil
	}
}
