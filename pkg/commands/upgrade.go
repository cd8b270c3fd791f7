package commands

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

const installPath = "tableflip.dev/levelreq/cmd/levelreq@latest"

func addUpgrade(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the levelreq cli.",
		Example: `
levelreq upgrade
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			ex := exec.CommandContext(cmd.Context(), "go", "install", installPath)
			out, err := ex.CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w\n%s", ex.String(), err, out)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", installPath)
			return nil
		},
	}

	topLevel.AddCommand(cmd)
}
