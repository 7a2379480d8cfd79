package cmd

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Emmyhack/TFN/internal/coordinator"
	"github.com/Emmyhack/TFN/internal/server"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room coordinator (signaling server)",
	Long: `Run the signaling server that owns conference rooms and relays
negotiation messages between participants. Room state is in-memory only:
a restart drops every room and clients must rejoin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(flagServeAddr)
	},
}

func runServer(addr string) error {
	hub := coordinator.NewHub()
	go hub.Run()

	mux := server.NewMux(hub)

	slog.Info("starting signaling server", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagServeAddr, "addr", "a", ":8080", "Listen address")
}
