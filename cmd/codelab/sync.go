package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/codelabhq/codelab/internal/catalog"
	"github.com/codelabhq/codelab/internal/config"
	"github.com/codelabhq/codelab/internal/engine"
	"github.com/codelabhq/codelab/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync <lesson.yaml>",
	GroupID: "sync",
	Short:   "One-shot sync of a lesson's files to the answer store",
	Long: `Sync pushes the current content of a lesson's exercise files to the
answer store and exits. It does not watch for further edits, and it never
rewrites local files: what is on disk is exactly what gets pushed.

This is the escape hatch for edits that were dropped while a previous push
was in flight, and for pushing work done while the tracker wasn't running.

Example usage:
  codelab sync lesson.yaml                   # push every exercise file
  codelab sync lesson.yaml --file loops.py   # push one file`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

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
		engineConfig.Logger = logger

		eng, err := engine.New(store, provider, engineConfig)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx := context.Background()

		ids, err := provider.ListExerciseIdentities(ctx, manifest.LessonID)
		if err != nil {
			return err
		}
		// Attach, don't track: tracking materializes, and materialization
		// would pull remote content over the local edits being pushed.
		if err := eng.AttachLesson(cfg.Workspace, manifest.LessonID, provider.CourseID(), ids); err != nil {
			return err
		}

		if file != "" {
			path := file
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.Workspace, file)
			}
			if err := eng.ForceSyncFile(ctx, path); err != nil {
				return err
			}
			fmt.Printf("%s Synced %s\n", ui.RenderPass("✓"), path)
			return nil
		}

		if err := eng.SyncAll(ctx); err != nil {
			return err
		}

		stats := eng.Stats()
		fmt.Printf("%s Synced %d exercises\n", ui.RenderPass("✓"), stats.Pushed)
		if stats.Failed > 0 {
			fmt.Printf("%s %d failed\n", ui.RenderFail("✗"), stats.Failed)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("file", "", "sync only this exercise file")
	rootCmd.AddCommand(syncCmd)
}
