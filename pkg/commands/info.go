package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/runner/info"
)

func addInfo(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "info",
		Aliases: []string{"status"},
		Short:   "Login state, queue counts and where the data is stored.",
		Example: `
levelreq info
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return output.HandleError(err)
			}
			s := info.Info{
				Settings: e.settings,
				Service:  e.service,
				JSON:     output.JSON,
			}
			return output.HandleError(s.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}

func addMessage(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "message <id>",
		Short: "Print the chat reply for a submitted level.",
		Example: `
levelreq message 86407629
`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return levelCompletions(args), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			s := info.Message{
				Service: e.service,
				ID:      args[0],
			}
			return s.Do(cmd.Context())
		},
	}

	topLevel.AddCommand(cmd)
}
