package commands

import (
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/runner/watch"
	"tableflip.dev/levelreq/pkg/store"
)

func addWatch(topLevel *cobra.Command) {
	ido := &options.IDOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reprint the queue whenever another levelreq process changes it.",
		Example: `
levelreq watch
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			settings, err := store.LoadSettings()
			if err != nil {
				return err
			}
			log := logging.New(settings.LogLevel, os.Stderr, settings.LogJSON)
			p, err := store.Load(settings, log)
			if err != nil {
				return err
			}
			s := watch.Watch{
				Persistence: p,
				ShowID:      ido.ShowID,
				Logger:      log,
			}
			return s.Do(cmd.Context())
		},
	}

	options.AddShowIDArgs(cmd, ido)

	topLevel.AddCommand(cmd)
}
