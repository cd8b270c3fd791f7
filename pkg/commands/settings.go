package commands

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/runner/settings"
)

func addLogin(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "login [app-id]",
		Short: "Store the app id issued by the submission site.",
		Example: `
levelreq login 3f9c2a
levelreq login
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			var appID string
			if len(args) > 0 {
				appID = args[0]
			} else {
				p := promptui.Prompt{
					Label: "App id",
					Mask:  '*',
					Validate: func(s string) error {
						if strings.TrimSpace(s) == "" {
							return app.ErrEmptyAppID
						}
						return nil
					},
				}
				if appID, err = p.Run(); err != nil {
					return err
				}
			}
			s := settings.Login{
				Service: e.service,
				AppID:   appID,
				Site:    e.settings.Site,
			}
			return s.Do(cmd.Context())
		},
	}

	topLevel.AddCommand(cmd)
}

func addSettings(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the streamer settings.",
		Example: `
levelreq settings
levelreq settings --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return output.HandleError(err)
			}
			s := settings.Show{
				Service: e.service,
				JSON:    output.JSON,
			}
			return output.HandleError(s.Do(cmd.Context()))
		},
	}

	options.AddOutputArg(cmd, output)

	addSettingsSet(cmd)
	topLevel.AddCommand(cmd)
}

func addSettingsSet(parent *cobra.Command) {
	long := strings.Builder{}
	long.WriteString("Change one or more settings and push them to the submission site.\n\n")
	long.WriteString("Keys:\n")
	for _, k := range config.SettableKeys() {
		long.WriteString("  " + k + "\n")
	}
	long.WriteString("\nlength and difficulty take comma separated lists, or \"all\".\n")

	cmd := &cobra.Command{
		Use:       "set key value [key value...]",
		Short:     "Change streamer settings.",
		Long:      long.String(),
		ValidArgs: config.SettableKeys(),
		Example: `
levelreq settings set streamer_name Viprin
levelreq settings set difficulty "hard,insane,easy demon" rated rated
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected key value pairs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			pairs := make([][2]string, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				pairs = append(pairs, [2]string{args[i], args[i+1]})
			}
			s := settings.Set{
				Service: e.service,
				Pairs:   pairs,
			}
			return s.Do(cmd.Context())
		},
	}

	parent.AddCommand(cmd)
}
