// Package cli contains the newsdigest commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/usecase"
)

// Application is what the commands drive.
type Application interface {
	RunDigest(ctx context.Context, req domain.DigestRequest) usecase.Result
	Refresh(ctx context.Context) error
	Serve(ctx context.Context) error
	Schedule(ctx context.Context) error
	Close(ctx context.Context)
}

// Factory builds the application once configuration is loaded.
type Factory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (Application, error)

func defaultFactory(ctx context.Context, cfg config.Config, logger *slog.Logger) (Application, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type rootOptions struct {
	configPath string
	verbose    bool

	cfg     config.Config
	logger  *slog.Logger
	factory Factory
}

// NewRootCommand returns the newsdigest command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultFactory)
}

func newRootCommand(factory Factory) *cobra.Command {
	opts := &rootOptions{factory: factory}

	root := &cobra.Command{
		Use:   "newsdigest",
		Short: "Personalized daily news digests by email",
		Long: `newsdigest turns a reader's interests into a daily email digest.

It retrieves matching headlines from an indexed news snapshot, fetches the
articles, summarizes them with a language model and emails the result.

Example usage:
  newsdigest refresh                                   # Rebuild the headline index
  newsdigest run -p "AI research" -e me@example.com    # Send one digest
  newsdigest serve                                     # Start the HTTP API
  newsdigest schedule                                  # Run cron jobs for subscribers`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("NEWSDIGEST_CONFIG"), "YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCommand(opts),
		newRefreshCommand(opts),
		newServeCommand(opts),
		newScheduleCommand(opts),
	)
	return root
}

func (o *rootOptions) init() error {
	o.cfg = config.LoadFrom(o.configPath)
	level := o.cfg.Logging.Level
	if o.verbose {
		level = "debug"
	}
	o.logger = logging.NewWithFormat(level, o.cfg.Logging.Format, os.Stderr)
	o.logger.Debug("configuration loaded", "config", o.configPath, "sources", o.cfg.Sources, "timezone", o.cfg.Scheduler.Location().String())
	return nil
}

// build validates what the command needs and constructs the application.
func (o *rootOptions) build(ctx context.Context, reqs ...config.Requirement) (Application, error) {
	if err := o.cfg.Validate(reqs...); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return o.factory(ctx, o.cfg, o.logger)
}
