package commands

import (
	"os"

	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/store"
)

func addCompletions(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "Generates bash completion scripts",
		Long: `To load completion run

. <(levelreq completion)

To configure your bash shell to load completions for each session add to your bashrc

# ~/.bashrc or ~/.profile
. <(levelreq completion)
`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = topLevel.GenBashCompletionV2(os.Stdout, true)
		},
	}

	topLevel.AddCommand(cmd)
}

// levelCompletions offers the queued level ids, described by their titles.
func levelCompletions(args []string) []string {
	if len(args) > 0 {
		return nil
	}
	p, err := store.Load(nil, nil)
	if err != nil {
		return nil
	}
	queue := p.LoadQueue()
	out := make([]string, 0, len(queue))
	for _, r := range queue {
		out = append(out, r.ID+"\t"+r.Title())
	}
	return out
}
