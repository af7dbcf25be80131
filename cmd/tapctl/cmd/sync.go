package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/tap-paypal/internal/api/client"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one incremental sync now",
		Long: "Trigger a sync on the service and wait for it to finish. Fails with\n" +
			"a conflict if a scheduled or manual sync is already running.",
		Example: `  tapctl sync
  tapctl sync --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := newClient().Sync(cmd.Context())
			if err != nil {
				if apiclient.IsConflict(err) {
					return errors.New("a sync is already running, try again later")
				}
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			tw := newTabWriter(cmd.OutOrStdout())
			tw.writef("Run:\t%s\n", res.RunID)
			tw.writef("Window:\t%s .. %s\n", res.StartDate, res.EndDate)
			tw.writef("Invoices:\t%d\n", res.Invoices)
			tw.writef("Rows:\t%d\n", res.Rows)
			tw.writef("Skipped:\t%d\n", res.Skipped)
			tw.writef("Bookmark:\t%s\n", orDash(res.Bookmark))
			tw.writef("Duration:\t%s\n", res.Duration)
			return tw.finish()
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the persisted bookmark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newClient().GetState(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), b)
			}
			tw := newTabWriter(cmd.OutOrStdout())
			tw.writef("Stream:\t%s\n", b.Stream)
			tw.writef("Replication key:\t%s\n", b.ReplicationKey)
			tw.writef("Value:\t%s\n", b.Value)
			if !b.UpdatedAt.IsZero() {
				tw.writef("Updated:\t%s\n", b.UpdatedAt.Format(timeLayout))
			}
			return tw.finish()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
