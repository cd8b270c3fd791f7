package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	base "github.com/n3wscott/cli-base/pkg/commands/options"

	"tableflip.dev/levelreq/pkg/commands/options"
	"tableflip.dev/levelreq/pkg/store"
)

var (
	output = &options.OutputOptions{}
)

func New() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "levelreq",
		Short: base.Wrap80("Keep a streamer's level request queue in sync with the submission site."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	addGlobalFlags(cmd)
	AddCommands(cmd)
	return cmd
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("path", store.DefaultPath, "Directory holding the settings, queue and history documents.")
	flags.String("endpoint", store.DefaultEndpoint, "Queue API endpoint.")
	flags.String("report-endpoint", store.DefaultReportEndpoint, "Level report endpoint.")
	flags.String("site", store.DefaultSite, "Submission site base URL.")
	flags.Duration("timeout", store.DefaultTimeout, "Per request timeout, capped at 10s.")
	flags.String("log-level", store.DefaultLogLevel, "Log level: debug, info, warn or error.")
	flags.Bool("log-json", false, "Log as JSON.")

	for key, flag := range map[string]string{
		store.KeyPath:           "path",
		store.KeyEndpoint:       "endpoint",
		store.KeyReportEndpoint: "report-endpoint",
		store.KeySite:           "site",
		store.KeyTimeout:        "timeout",
		store.KeyLogLevel:       "log-level",
		store.KeyLogJSON:        "log-json",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func AddCommands(topLevel *cobra.Command) {
	addRun(topLevel)
	addRefresh(topLevel)
	addQueue(topLevel)
	addHistory(topLevel)
	addShow(topLevel)
	addDelete(topLevel)
	addClear(topLevel)
	addRandom(topLevel)
	addReport(topLevel)
	addExport(topLevel)
	addLogin(topLevel)
	addSettings(topLevel)
	addMessage(topLevel)
	addInfo(topLevel)
	addWatch(topLevel)
	addMCP(topLevel)
	addVersion(topLevel)
	addUpgrade(topLevel)
	addCompletions(topLevel)
}
