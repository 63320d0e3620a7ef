package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCmd(client *Client) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit trail entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var page listPage[auditEntryResource]
			path := fmt.Sprintf("/v1/audit?max_results=%d", maxResults)
			if err := client.Get(path, &page); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}
			rows := make([][]string, len(page.Data))
			for i, e := range page.Data {
				rows[i] = []string{
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.PrincipalName, e.Action, e.Status, e.Detail,
				}
			}
			return printTable(cmd.OutOrStdout(),
				[]string{"TIME", "PRINCIPAL", "ACTION", "STATUS", "DETAIL"}, rows)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 50, "Maximum number of results")
	return cmd
}
