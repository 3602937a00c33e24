package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/learnjournal/journal/internal/agent"
	"github.com/learnjournal/journal/internal/entries"
	"github.com/learnjournal/journal/internal/remote"
	"github.com/learnjournal/journal/internal/syncer"
)

type entryFlags struct {
	week        int
	name        string
	date        string
	task        string
	description string
	tech        []string
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.week, "week", "w", 0, "week of the journal")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "journal name")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "journal date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "task name")
	cmd.Flags().StringVarP(&f.description, "description", "m", "", "task description, at least 10 words")
	cmd.Flags().StringSliceVar(&f.tech, "tech", nil, "technologies used (repeat or comma separate)")
}

func (f *entryFlags) entry() entries.Entry {
	date := f.date
	if date == "" {
		date = time.Now().Format(entries.DateLayout)
	}
	return entries.Entry{
		WeekOfJournal:   f.week,
		JournalName:     f.name,
		JournalDate:     date,
		TaskName:        f.task,
		TaskDescription: f.description,
		Technologies:    entries.Technologies(f.tech),
	}
}

// patch includes only the flags given on the command line.
func (f *entryFlags) patch(cmd *cobra.Command) entries.Patch {
	var p entries.Patch
	changed := cmd.Flags().Changed
	if changed("week") {
		p.WeekOfJournal = &f.week
	}
	if changed("name") {
		p.JournalName = &f.name
	}
	if changed("date") {
		p.JournalDate = &f.date
	}
	if changed("task") {
		p.TaskName = &f.task
	}
	if changed("description") {
		p.TaskDescription = &f.description
	}
	if changed("tech") {
		p.Technologies = entries.Technologies(f.tech)
	}
	return p
}

func (r *runner) addCommand() *cobra.Command {
	var flags entryFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Write a journal entry",
		Long: `Write a journal entry. When the server is unreachable the entry is
queued locally and sent on the next sync.

Example:
  journal add -w 3 -n "Week three" -t "Service worker" --tech Go,PWA \
    -m "Cached the app shell and wrote a network first strategy for the entry API"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), true, func(ctx context.Context, a *agent.Agent) error {
				rec, err := a.Engine.Submit(ctx, flags.entry())
				if err != nil {
					return describe(err)
				}
				out := cmd.OutOrStdout()
				if rec.State == entries.StatePending {
					fmt.Fprintf(out, "queued %s\n", rec.Entry.ID)
					return nil
				}
				fmt.Fprintf(out, "saved %s\n", rec.Entry.ID)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func (r *runner) listCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first, including queued ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), false, func(ctx context.Context, a *agent.Agent) error {
				rows, err := a.Engine.View(ctx)
				if err != nil {
					if len(rows) == 0 {
						return describe(err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), "server unreachable, showing queued entries only")
				}
				return printRecords(cmd.OutOrStdout(), rows, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printRecords(w io.Writer, rows []entries.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no entries")
		return nil
	}
	for _, row := range rows {
		e := row.Entry
		marker := " "
		if row.State == entries.StatePending {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s  week %d  %s: %s [%s]\n", marker, e.ID, e.JournalDate, e.WeekOfJournal, e.JournalName, e.TaskName, e.Technologies)
	}
	return nil
}

func (r *runner) editCommand() *cobra.Command {
	var flags entryFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a saved entry (online only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := flags.patch(cmd)
			if patch.Empty() {
				return errors.New("nothing to change: pass at least one field flag")
			}
			return r.withAgent(cmd.Context(), true, func(ctx context.Context, a *agent.Agent) error {
				updated, err := a.Engine.Update(ctx, args[0], patch)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", updated.ID)
				return nil
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func (r *runner) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved entry (online only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), true, func(ctx context.Context, a *agent.Agent) error {
				total, err := a.Engine.Delete(ctx, args[0])
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s, %d entries left\n", args[0], total)
				return nil
			})
		},
	}
}

// describe turns engine errors into messages for the terminal.
func describe(err error) error {
	var verr *entries.ValidationError
	var apiErr *remote.APIError
	switch {
	case errors.As(err, &verr):
		return verr
	case errors.As(err, &apiErr) && apiErr.Message != "" && !remote.IsTransient(apiErr):
		return errors.New(apiErr.Message)
	case errors.Is(err, syncer.ErrOffline):
		return errors.New("you are offline: edits and deletes need the server")
	case errors.Is(err, syncer.ErrPendingEntry):
		return errors.New("this entry is still waiting to sync and cannot be changed yet")
	default:
		return err
	}
}
