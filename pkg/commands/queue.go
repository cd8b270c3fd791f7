package commands

import (
	"io"

	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/prompt"
	"tableflip.dev/levelreq/pkg/runner/get"
)

func addQueue(topLevel *cobra.Command) {
	ido := &options.IDOptions{}
	fo := &options.FilterOptions{}

	cmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"ls", "list"},
		Short:   "List queued level requests.",
		Example: `
levelreq queue
levelreq queue --filtered --show-id
levelreq queue --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return output.HandleError(err)
			}
			s := get.Get{
				Service:  e.service,
				Source:   get.Queue,
				Filtered: fo.Filtered,
				ShowID:   ido.ShowID,
				JSON:     output.JSON,
			}
			return output.HandleError(s.Do(cmd.Context()))
		},
	}

	options.AddShowIDArgs(cmd, ido)
	options.AddFilterArgs(cmd, fo)
	options.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}

func addHistory(topLevel *cobra.Command) {
	ido := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List levels that were played or cleared.",
		Example: `
levelreq history
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return output.HandleError(err)
			}
			s := get.Get{
				Service: e.service,
				Source:  get.History,
				ShowID:  ido.ShowID,
				JSON:    output.JSON,
			}
			return output.HandleError(s.Do(cmd.Context()))
		},
	}

	options.AddShowIDArgs(cmd, ido)
	options.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}

func addShow(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show every detail of a queued level.",
		Example: `
levelreq show 86407629
levelreq show
`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return levelCompletions(args), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return output.HandleError(err)
			}
			id, err := levelArg(cmd, e.service, args, "Show which level")
			if err != nil {
				return output.HandleError(err)
			}
			s := get.Show{
				Service: e.service,
				ID:      id,
				JSON:    output.JSON,
			}
			return output.HandleError(s.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}

// levelArg returns args[0], or lets the user pick a queued level when no id
// was given.
func levelArg(cmd *cobra.Command, svc *app.Service, args []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	queue, err := svc.Queue()
	if err != nil {
		return "", err
	}
	r, err := prompt.SelectLevel(label, queue, io.NopCloser(cmd.InOrStdin()), prompt.NopCloser(cmd.OutOrStdout()))
	if err != nil {
		return "", err
	}
	return r.ID, nil
}
