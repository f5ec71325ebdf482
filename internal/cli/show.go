package cli

import (
	"github.com/spf13/cobra"

	"bybit-volume-scanner/internal/app"
)

var (
	showLimit  int
	showAlerts bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show tracked symbols, or recent alerts with --alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Limit:  showLimit,
			Alerts: showAlerts,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "Maximum rows to display")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Show the alert audit log (requires database)")
}
