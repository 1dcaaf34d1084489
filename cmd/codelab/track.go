package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/codelabhq/codelab/internal/catalog"
	"github.com/codelabhq/codelab/internal/config"
	"github.com/codelabhq/codelab/internal/dashboard"
	"github.com/codelabhq/codelab/internal/engine"
	"github.com/codelabhq/codelab/internal/ui"
)

var trackCmd = &cobra.Command{
	Use:     "track <lesson.yaml>",
	GroupID: "sync",
	Short:   "Materialize a lesson and sync edits until interrupted",
	Long: `Track a lesson: materialize its exercises into the workspace, watch them
for edits, and push debounced changes to the answer store.

The lesson manifest lists the exercises (section id, order, title, language,
optional starter code). Files already holding a remote answer are overwritten
with it; files with only local work are left alone.

Example usage:
  codelab track lesson.yaml
  codelab track lesson.yaml --with-dashboard

Press Ctrl+C to stop tracking.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("with-dashboard")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, closer := config.NewLogger(cfg, "[codelab] ")
		if closer != nil {
			defer closer.Close()
		}

		manifest, err := catalog.LoadManifest(args[0])
		if err != nil {
			return err
		}
		provider := catalog.NewManifestProvider(manifest)

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		engineConfig := engine.DefaultConfig(cfg.UserID)
		engineConfig.DebounceInterval = cfg.DebounceInterval()
		engineConfig.Logger = logger

		eng, err := engine.New(store, provider, engineConfig)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Optional live dashboard mirroring the event stream.
		if withDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer server.Stop()

			handler := dashboard.NewHandler(server, logger)
			handler.OnSessionStarted(manifest.CourseID, manifest.LessonID, cfg.Workspace)
			go handler.Run(ctx, eng.Events())

			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", cfg.DashboardPort)
		} else {
			// Drain events so the buffer never fills.
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-eng.Events():
					}
				}
			}()
		}

		ids, err := provider.ListExerciseIdentities(ctx, manifest.LessonID)
		if err != nil {
			return err
		}

		if err := eng.TrackLesson(cfg.Workspace, manifest.LessonID, provider.CourseID(), ids); err != nil {
			return err
		}

		fmt.Printf("%s Tracking %s (%d exercises) in %s\n",
			ui.RenderPass("✓"), ui.RenderAccent(manifest.Title), len(ids), cfg.Workspace)
		fmt.Println(ui.RenderMuted("Press Ctrl+C to stop..."))

		<-ctx.Done()

		fmt.Println("\nStopping tracking...")
		stats := eng.Stats()
		eng.StopTracking()

		fmt.Printf("%s Session complete: %d pushed, %d skipped, %d failed\n",
			ui.RenderPass("✓"), stats.Pushed, stats.Skipped, stats.Failed)
		return nil
	},
}

func init() {
	trackCmd.Flags().Bool("with-dashboard", false, "serve the WebSocket dashboard while tracking")
	rootCmd.AddCommand(trackCmd)
}
