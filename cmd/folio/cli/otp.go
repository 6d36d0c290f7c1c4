package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/store"
)

func newOTPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Maintain one-time sign-in codes",
	}
	cmd.AddCommand(newOTPPurgeCmd())
	return cmd
}

func newOTPPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete used or expired one-time codes",
		Long: `Delete one-time codes that are used or expired and were issued before the
cutoff. Nothing deletes codes automatically; run this from cron if wanted.`,
		Example: `  folio otp purge                    # codes older than 24h
  folio otp purge --older-than 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				return runOTPPurge(ctx, cmd.OutOrStdout(), st, olderThan, time.Now())
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Only delete codes issued longer ago than this")

	return cmd
}

func runOTPPurge(ctx context.Context, out io.Writer, st *store.Store, olderThan time.Duration, now time.Time) error {
	if olderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}
	n, err := st.PurgeOTPs(ctx, now.Add(-olderThan), now)
	if err != nil {
		return fmt.Errorf("purge codes: %w", err)
	}
	fmt.Fprintf(out, "Deleted %d one-time code(s)\n", n)
	return nil
}
