package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/learnjournal/journal/internal/agent"
	"github.com/learnjournal/journal/internal/prefs"
)

func (r *runner) themeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or set the stored colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(prefs.ThemeLight), string(prefs.ThemeDark), "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAgent(cmd.Context(), false, func(ctx context.Context, a *agent.Agent) error {
				current := a.Themes.Get(ctx)
				if len(args) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), current)
					return nil
				}
				next := current.Toggle()
				if args[0] != "toggle" {
					parsed, err := prefs.ParseTheme(args[0])
					if err != nil {
						return err
					}
					next = parsed
				}
				if err := a.Themes.Set(ctx, next); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), next)
				return nil
			})
		},
	}
}
