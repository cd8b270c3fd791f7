package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/runner/report"
)

func addReport(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "report [id] [reason...]",
		Short: "Report a queued level to the site moderators.",
		Long: `Report sends the level id and a reason to the submission site. Without a
reason you are prompted for one. Nothing changes locally.`,
		Example: `
levelreq report 86407629 "stolen level"
levelreq report
`,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return levelCompletions(args), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			id, err := levelArg(cmd, e.service, args, "Report which level")
			if err != nil {
				return err
			}
			var reason string
			if len(args) > 1 {
				reason = strings.Join(args[1:], " ")
			}
			s := report.Report{
				Service: e.service,
				ID:      id,
				Reason:  reason,
				Prompt:  true,
			}
			return s.Do(cmd.Context())
		},
	}

	topLevel.AddCommand(cmd)
}
