package options

import (
	"github.com/spf13/cobra"
)

// FilterOptions selects between the whole queue and the part the
// streamer's filters admit.
type FilterOptions struct {
	Filtered bool
}

func AddFilterArgs(cmd *cobra.Command, o *FilterOptions) {
	cmd.Flags().BoolVarP(&o.Filtered, "filtered", "f", false,
		"Only show levels the configured filters admit.")
}
