package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ErrNotConfirmed is returned by reset without --yes.
var ErrNotConfirmed = errors.New("refusing to reset stats without --yes")

type statusReport struct {
	Tracking any `json:"tracking"`
	Today    any `json:"today"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the stored tracking state and today's summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			st, err := svc.TrackingStatus(ctx)
			if err != nil {
				return err
			}
			sum, err := svc.Summary(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), statusReport{Tracking: st, Today: sum})
		},
	}
}

func newCleanupCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove daily stats older than the retention",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			var removed int
			if cmd.Flags().Changed("retention-days") {
				removed, err = svc.CleanupWithRetention(ctx, retentionDays)
			} else {
				removed, err = svc.Cleanup(ctx)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d daily entries\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "days to keep (default: configured retention_days)")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear all daily and weekly stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return ErrNotConfirmed
			}
			ctx := cmd.Context()
			svc, err := openService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if err := svc.ResetStats(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "stats cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
