package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/runner/pick"
	"tableflip.dev/levelreq/pkg/runner/remove"
)

func addDelete(topLevel *cobra.Command) {
	co := &options.ConfirmOptions{}

	cmd := &cobra.Command{
		Use:     "delete [id]",
		Aliases: []string{"rm", "done"},
		Short:   "Move a level from the queue to the history.",
		Example: `
levelreq delete 86407629
levelreq delete
`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return levelCompletions(args), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			id, err := levelArg(cmd, e.service, args, "Delete which level")
			if err != nil {
				return err
			}
			r, err := e.service.Find(id)
			if err != nil {
				return err
			}
			if ok, err := co.Confirm(fmt.Sprintf("Delete %s", r.Title())); err != nil || !ok {
				return err
			}
			s := remove.Delete{
				ID:      id,
				Service: e.service,
			}
			return s.Do(cmd.Context())
		},
	}

	options.AddConfirmArgs(cmd, co)

	topLevel.AddCommand(cmd)
}

func addClear(topLevel *cobra.Command) {
	co := &options.ConfirmOptions{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Move every queued level to the history.",
		Example: `
levelreq clear
levelreq clear --yes
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			queue, err := e.service.Queue()
			if err != nil {
				return err
			}
			if len(queue) > 0 {
				ok, err := co.Confirm(fmt.Sprintf("Clear all %d queued levels", len(queue)))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			s := remove.Clear{Service: e.service}
			return s.Do(cmd.Context())
		},
	}

	options.AddConfirmArgs(cmd, co)

	topLevel.AddCommand(cmd)
}

func addRandom(topLevel *cobra.Command) {
	var del bool

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Pick a queued level at random.",
		Example: `
levelreq random
levelreq random --delete
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			s := pick.Random{
				Service: e.service,
				Delete:  del,
			}
			return s.Do(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&del, "delete", "d", false, "Also move the picked level to the history.")

	topLevel.AddCommand(cmd)
}
