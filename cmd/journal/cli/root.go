// Package cli implements the journal command line client.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/learnjournal/journal/internal/agent"
	"github.com/learnjournal/journal/internal/app"
	"github.com/learnjournal/journal/internal/notify"
)

// Options configures the root command. Zero values read the environment
// and use the process streams.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Config *app.Config
	Agent  agent.Options
}

type runner struct {
	opts Options
}

// NewRootCommand builds the journal command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	r := &runner{opts: opts}

	root := &cobra.Command{
		Use:   "journal",
		Short: "Offline-first client for the learning journal",
		Long: `journal writes learning journal entries to the journal server.

When the server cannot be reached new entries are kept in a local queue and
sent, in order, once it is back. Reads fall back to cached responses.`,
		SilenceUsage: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.AddCommand(
		r.addCommand(),
		r.listCommand(),
		r.editCommand(),
		r.deleteCommand(),
		r.syncCommand(),
		r.statusCommand(),
		r.watchCommand(),
		r.proxyCommand(),
		r.themeCommand(),
	)
	return root
}

func (r *runner) config() (*app.Config, error) {
	if r.opts.Config != nil {
		return r.opts.Config, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	r.opts.Config = cfg
	return cfg, nil
}

// withAgent builds the agent for one command. probe records the server's
// reachability first so writes pick the right path.
func (r *runner) withAgent(ctx context.Context, probe bool, fn func(context.Context, *agent.Agent) error) error {
	cfg, err := r.config()
	if err != nil {
		return err
	}
	logger := app.NewLoggerTo(cfg, r.opts.Stderr)
	agentOpts := r.opts.Agent
	if agentOpts.Notifier == nil {
		agentOpts.Notifier = notify.NewWriter(r.opts.Stderr, logger)
	}
	a, err := agent.New(ctx, cfg, logger, agentOpts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("close agent", slog.Any("error", closeErr))
		}
	}()
	if probe {
		a.Probe(ctx)
	}
	return fn(ctx, a)
}
