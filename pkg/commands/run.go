package commands

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/runner/poll"
	"tableflip.dev/levelreq/pkg/store"
)

func addRun(topLevel *cobra.Command) {
	ido := &options.IDOptions{}
	var (
		interval    = store.DefaultPollInterval
		metricsAddr string
		noDonate    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync the queue with the submission site until interrupted.",
		Long: `Run polls the submission site for the queue, sends a heartbeat so the site
knows the streamer is online, and prints the queue whenever it changes.
Levels removed on the site are dropped from the local queue without being
archived.`,
		Example: `
levelreq run
levelreq run --interval 10s --metrics-addr 127.0.0.1:9090
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = e.settings.PollInterval
			}
			r := poll.Poll{
				Service:     e.service,
				Interval:    interval,
				ShowID:      ido.ShowID,
				NoDonate:    noDonate,
				MetricsAddr: metricsAddr,
				Gatherer:    e.registry,
				OnMetricsListening: func(a net.Addr) {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Metrics on http://%s/metrics\n", a)
				},
				Logger: e.log,
			}
			return r.Do(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", store.DefaultPollInterval, "Time between polls.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address.")
	cmd.Flags().BoolVar(&noDonate, "no-donate", false, "Never show the donation notice.")
	options.AddShowIDArgs(cmd, ido)

	topLevel.AddCommand(cmd)
}

func addRefresh(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the queue from the submission site once.",
		Example: `
levelreq refresh
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			e, err := loadEnv()
			if err != nil {
				return output.HandleError(err)
			}
			if err := e.service.Refresh(cmd.Context()); err != nil {
				return output.HandleError(err)
			}
			queue, err := e.service.Queue()
			if err != nil {
				return output.HandleError(err)
			}
			if output.JSON {
				return output.Print(queue)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Queue refreshed, %d levels.\n", len(queue))
			return nil
		},
	}

	options.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}
