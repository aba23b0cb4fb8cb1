package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"shopflow/internal/config"
	"shopflow/internal/model"
	"shopflow/pkg/logger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newQueueCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQueueFailedCommand(cfg))
	cmd.AddCommand(newQueueStuckCommand(cfg))
	cmd.AddCommand(newQueueRequeueCommand(cfg))
	return cmd
}

func newQueueFailedCommand(cfg func() *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List failed queue items with per-processor state",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			a, err := buildApp(cfg())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := context.Background()
			items, err := a.queueSvc.FailedItems(ctx, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("no failed items")
				return nil
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"ID", "Subject", "Work Type", "Attempts", "Failed At", "Error", "Tracking"})
			for i := range items {
				item := &items[i]
				tracking := ""
				rows, err := a.queueSvc.TrackingForItem(ctx, item.ID)
				if err == nil {
					for _, row := range rows {
						if tracking != "" {
							tracking += ", "
						}
						tracking += fmt.Sprintf("%s=%s", row.ProcessorName, model.StatusName(row.Status))
					}
				}
				tw.AppendRow(table.Row{
					item.ID, item.SubjectID, item.WorkType, item.Attempts,
					formatTime(item.FailedAt), item.ErrorMessage, tracking,
				})
			}
			fmt.Println(tw.Render())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum items to list")
	return cmd
}

func newQueueStuckCommand(cfg func() *config.Config) *cobra.Command {
	var limit int
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "stuck",
		Short: "List items claimed long ago and never finished",
		Long: "Lists queue items still marked processing past the expected horizon,\n" +
			"usually left behind by a crashed run. Nothing resets them automatically;\n" +
			"use 'queue requeue' after investigating.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			c := cfg()
			if olderThan <= 0 {
				olderThan = c.Workers.StuckHorizon
			}

			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.queueSvc.StuckItems(context.Background(), olderThan, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("no stuck items")
				return nil
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"ID", "Subject", "Work Type", "Attempts", "Claimed At"})
			for i := range items {
				item := &items[i]
				tw.AppendRow(table.Row{
					item.ID, item.SubjectID, item.WorkType, item.Attempts,
					item.UpdatedAt.Format(time.RFC3339),
				})
			}
			fmt.Println(tw.Render())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum items to list")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Processing horizon (default from config)")
	return cmd
}

func newQueueRequeueCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <item-id>",
		Short: "Manually reset a stuck or failed item back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			a, err := buildApp(cfg())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.queueSvc.RequeueItem(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("item %d reset to pending\n", id)
			return nil
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
