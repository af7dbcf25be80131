package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/tap-paypal/internal/api/client"
)

func rowsCmd() *cobra.Command {
	var (
		filter       apiclient.RowFilter
		updatedSince string
	)

	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Query stored invoice rows",
		Long: "Query rows written by the postgres sink. Filters combine with AND.\n" +
			"--kind selects header, item or refund rows.",
		Example: `  tapctl rows --invoice INV2-ABCD-1234
  tapctl rows --status PAID --kind item --limit 20
  tapctl rows --updated-since 2024-03-01T00:00:00Z --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if updatedSince != "" {
				t, err := time.Parse(time.RFC3339, updatedSince)
				if err != nil {
					return fmt.Errorf("--updated-since must be RFC 3339: %w", err)
				}
				filter.UpdatedSince = t
			}

			page, err := newClient().ListRows(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), page)
			}
			if len(page.Rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rows found.")
				return nil
			}
			if err := printRowsTable(cmd.OutOrStdout(), page.Rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d rows (offset %d).\n",
				len(page.Rows), page.Total, page.Offset)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.InvoiceID, "invoice", "", "filter by invoice ID")
	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by invoice status")
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "filter by row kind (header, item, refund)")
	cmd.Flags().StringVar(&updatedSince, "updated-since", "", "only rows updated at or after this time (RFC 3339)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum rows (default: server default)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "rows to skip")
	return cmd
}
