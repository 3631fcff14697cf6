package cli

import (
	"github.com/spf13/cobra"
)

var cursorsCmd = &cobra.Command{
	Use:   "cursors",
	Short: "Show the stored cursor, cooldown and last value of every stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Cursors(cmd.Context())
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <stream>",
	Short: "Clear a stream's stored state so it re-initialises on the next poll",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Reset(cmd.Context(), args[0])
	},
}
