package cli

import (
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all persisted volume history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ResetHistory(cmd.Context())
	},
}
