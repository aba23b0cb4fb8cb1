package main

import (
	"context"
	"fmt"

	"shopflow/internal/config"
	"shopflow/internal/metrics"
	"shopflow/internal/queue"
	"shopflow/pkg/logger"

	"github.com/spf13/cobra"
)

// newDispatchCommand runs one dispatch batch and exits. Intended for cron:
// individual processor failures are reported through the notification sink
// and persisted error messages, not the exit code.
func newDispatchCommand(cfg func() *config.Config) *cobra.Command {
	var limit int
	var workType string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Drain one batch of pending queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			a, err := buildApp(cfg())
			if err != nil {
				return err
			}
			defer a.Close()

			dispatcher := queue.NewDispatcher(a.queueSvc, a.registry, a.notifier, metrics.NoopObserver{}, 0, limit)
			sum, err := dispatcher.RunOnce(context.Background(), queue.Options{
				Limit:    limit,
				WorkType: workType,
				Verbose:  verbose,
			})
			if err != nil {
				return err
			}

			if sum.ItemsClaimed > 0 || verbose {
				fmt.Printf("items: %d, processor runs succeeded: %d, failed: %d\n",
					sum.ItemsClaimed, sum.Succeeded, sum.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum items to claim in this batch")
	cmd.Flags().StringVar(&workType, "work-type", "", "Only dispatch items of this work type")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log one line per processor attempt")

	return cmd
}
