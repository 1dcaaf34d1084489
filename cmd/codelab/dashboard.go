package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/codelabhq/codelab/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start the WebSocket dashboard server standalone",
	Long: `Start a WebSocket dashboard server for monitoring sync activity.

The server broadcasts sync outcomes and session counters to connected
clients. Normally the dashboard runs embedded in 'codelab track
--with-dashboard'; this command runs it standalone for development.

WebSocket messages include:
- sync_outcome: a file was materialized, queued, pushed, skipped, or failed
- session: a tracking session started or ended
- stats: session counters

Example usage:
  codelab dashboard                # Start on default port 8484
  codelab dashboard --port 9000    # Start on custom port

Connect with a WebSocket client:
  ws://localhost:8484/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		config := &dashboard.Config{
			Port:   port,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		}

		server := dashboard.NewServer(config)

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 8484, "port for the dashboard server")
	rootCmd.AddCommand(dashboardCmd)
}
