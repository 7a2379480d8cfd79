package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Emmyhack/TFN/internal/ui"
	"github.com/Emmyhack/TFN/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "tfn",
	Short:   "Conference room signaling and coordination for The Fellowship Network",
	Long:    `TFN provides the real-time conference layer of The Fellowship Network: a websocket signaling server that coordinates rooms and relays peer negotiation, and a terminal client that joins conference rooms over WebRTC.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
