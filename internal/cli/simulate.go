package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var simulateStream string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a test notice to a stream's channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateStream == "" {
			return errors.New("--stream must be provided")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateStream)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateStream, "stream", "", "Stream whose channel receives the notice")
}
