package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the enabled streams and post alerts",
	Long: `Poll the floor, top bid, listings and sales streams on a fixed interval and
post new events to Discord and/or Telegram. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}
