package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/codelabhq/codelab/internal/ui"
)

// answerCounter is implemented by store backends that can report per-course
// answer counts.
type answerCounter interface {
	CountForUser(ctx context.Context, userID, courseID string) (int, error)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show answer store connectivity and progress",
	Long: `Display the answer store's health and, with --course, how many answers
you have stored for that course.

Example usage:
  codelab status
  codelab status --course python-101`,
	RunE: func(cmd *cobra.Command, args []string) error {
		courseID, _ := cmd.Flags().GetString("course")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		fmt.Println(ui.RenderHeader("codelab status"))
		fmt.Printf("   User:  %s\n", ui.RenderAccent(cfg.UserID))
		fmt.Printf("   Store: %s\n", cfg.StoreDriver)

		if err := store.Ping(ctx); err != nil {
			fmt.Printf("   %s store unreachable: %v\n", ui.RenderFail("✗"), err)
			return err
		}
		fmt.Printf("   %s store reachable\n", ui.RenderPass("✓"))

		if courseID != "" {
			counter, ok := store.(answerCounter)
			if !ok {
				fmt.Printf("   %s\n", ui.RenderMuted("answer counts not supported by this backend"))
				return nil
			}
			count, err := counter.CountForUser(ctx, cfg.UserID, courseID)
			if err != nil {
				return err
			}
			fmt.Printf("   Answers in %s: %d\n", ui.RenderAccent(courseID), count)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("course", "", "report answer count for this course")
	rootCmd.AddCommand(statusCmd)
}
