package commands

import (
	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/runner/export"
)

func addExport(topLevel *cobra.Command) {
	fo := &options.FilterOptions{}

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the queue as plain text.",
		Example: `
levelreq export
levelreq export ~/queue.txt --filtered
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			s := export.Export{
				Service:  e.service,
				Filtered: fo.Filtered,
			}
			if len(args) > 0 {
				s.File = args[0]
			}
			return s.Do(cmd.Context())
		},
	}

	options.AddFilterArgs(cmd, fo)

	topLevel.AddCommand(cmd)
}
