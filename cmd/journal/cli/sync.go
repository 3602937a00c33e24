package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/learnjournal/journal/internal/agent"
	"github.com/learnjournal/journal/internal/connectivity"
	"github.com/learnjournal/journal/internal/pending"
	"github.com/learnjournal/journal/internal/syncer"
)

func (r *runner) syncCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Send queued entries to the server now",
		Long: `Send queued entries to the server in the order they were written.

Entries waiting for their retry delay are skipped, and entries that failed
too often or were rejected stay parked. --force retries all of them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), true, func(ctx context.Context, a *agent.Agent) error {
				out := cmd.OutOrStdout()
				if !a.Monitor.Online() {
					fmt.Fprintf(out, "offline, %d entries still pending\n", a.Engine.Pending(ctx))
					return nil
				}
				res := a.Engine.DrainWith(ctx, syncer.DrainOptions{Force: force})
				printResult(out, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore retry delays and retry parked entries")
	return cmd
}

func printResult(w io.Writer, res syncer.Result) {
	if res.Skipped {
		fmt.Fprintln(w, "a sync is already running")
		return
	}
	fmt.Fprintf(w, "synced %d, failed %d, remaining %d, parked %d\n", res.Succeeded, res.Failed, res.Remaining, res.Parked)
}

type statusReport struct {
	connectivity.Status
	Queue []queuedEntry `json:"queue"`
}

type queuedEntry struct {
	ID            string    `json:"id"`
	JournalName   string    `json:"journalName"`
	Attempts      int       `json:"syncAttempts"`
	NextAttemptAt time.Time `json:"nextAttemptAt,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
	Parked        bool      `json:"parked,omitempty"`
}

func (r *runner) statusCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and the pending queue, syncing when possible",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), false, func(ctx context.Context, a *agent.Agent) error {
				report := statusReport{Status: a.Monitor.Check(ctx)}
				for _, it := range a.Engine.Queued(ctx) {
					report.Queue = append(report.Queue, queued(it))
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				printStatus(out, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func queued(it pending.Item) queuedEntry {
	return queuedEntry{
		ID:            it.ID,
		JournalName:   it.JournalName,
		Attempts:      it.Attempts,
		NextAttemptAt: it.NextAttemptAt,
		LastError:     it.LastError,
		Parked:        it.Parked,
	}
}

func printStatus(w io.Writer, report statusReport) {
	state := "offline"
	if report.Online {
		state = "online"
	}
	fmt.Fprintf(w, "server: %s\n", state)
	if report.Drained != nil {
		printResult(w, *report.Drained)
	}
	fmt.Fprintf(w, "pending: %d\n", len(report.Queue))
	for _, q := range report.Queue {
		line := fmt.Sprintf("  %s %s attempts=%d", q.ID, q.JournalName, q.Attempts)
		switch {
		case q.Parked:
			line += " parked"
		case !q.NextAttemptAt.IsZero():
			line += " next=" + q.NextAttemptAt.Local().Format(time.Kitchen)
		}
		if q.LastError != "" {
			line += " error=" + q.LastError
		}
		fmt.Fprintln(w, line)
	}
}

func (r *runner) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow connectivity and sync queued entries when the server returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), true, func(ctx context.Context, a *agent.Agent) error {
				if err := a.Prepare(ctx); err != nil {
					return err
				}
				if a.Monitor.Online() && a.Engine.Pending(ctx) > 0 {
					printResult(cmd.OutOrStdout(), a.Engine.Drain(ctx))
				}
				return a.Watch(ctx)
			})
		},
	}
}

func (r *runner) proxyCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Serve the journal through the offline cache on a local address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), true, func(ctx context.Context, a *agent.Agent) error {
				if addr == "" {
					addr = a.Config.ProxyAddr
				}
				if err := a.Prepare(ctx); err != nil {
					return err
				}
				return a.Serve(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default JOURNAL_PROXY_ADDR)")
	return cmd
}
