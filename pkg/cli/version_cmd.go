package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newVersionCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Inspect dataset versions and their lineage",
	}
	cmd.AddCommand(newVersionGetCmd(client))
	cmd.AddCommand(newVersionDataCmd(client))
	cmd.AddCommand(newVersionLineageCmd(client))
	cmd.AddCommand(newVersionCompareCmd(client))
	return cmd
}

func newVersionGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <version-id>",
		Short: "Show a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v versionResource
			if err := client.Get("/v1/versions/"+url.PathEscape(args[0]), &v); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), v)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", v.ID)
			fmt.Fprintf(out, "Dataset:  %s\n", v.DatasetID)
			if v.ParentVersionID != nil {
				fmt.Fprintf(out, "Parent:   %s\n", *v.ParentVersionID)
			} else {
				fmt.Fprintf(out, "Parent:   - (root)\n")
			}
			fmt.Fprintf(out, "Shape:    %d rows x %d columns\n", v.RowCount, v.ColumnCount)
			fmt.Fprintf(out, "Hash:     %s\n", v.ContentHash)
			fmt.Fprintf(out, "Created:  %s by %s\n", v.CreatedAt.Format("2006-01-02 15:04:05"), v.CreatedBy)
			return nil
		},
	}
}

func newVersionDataCmd(client *Client) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "data <version-id>",
		Short: "Download the CSV payload of a version",
		Example: `  refine version data 0190a1b2 > snapshot.csv
  refine version data 0190a1b2 --out snapshot.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.GetRaw("/v1/versions/" + url.PathEscape(args[0]) + "/data")
			if err != nil {
				return err
			}
			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outFile, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "Write the payload to a file instead of stdout")
	return cmd
}

func newVersionLineageCmd(client *Client) *cobra.Command {
	var descendants bool
	cmd := &cobra.Command{
		Use:   "lineage <version-id>",
		Short: "Show the transformation chain leading to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/versions/" + url.PathEscape(args[0]) + "/lineage"
			key := "lineage"
			if descendants {
				path = "/v1/versions/" + url.PathEscape(args[0]) + "/descendants"
				key = "descendants"
			}
			var resp map[string][]lineageEntryResource
			if err := client.Get(path, &resp); err != nil {
				return err
			}
			entries := resp[key]
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				steps := "-"
				if e.Edge != nil {
					kinds := make([]string, len(e.Edge.Steps))
					for j, s := range e.Edge.Steps {
						kinds[j] = s.Kind
					}
					steps = strings.Join(kinds, ",")
				}
				rows[i] = []string{short(e.Version.ID), fmt.Sprint(e.Version.RowCount),
					fmt.Sprint(e.Version.ColumnCount), steps}
			}
			return printTable(cmd.OutOrStdout(), []string{"VERSION", "ROWS", "COLS", "STEPS"}, rows)
		},
	}
	cmd.Flags().BoolVar(&descendants, "descendants", false, "Walk forward to derived versions instead of back to the root")
	return cmd
}

func newVersionCompareCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <version-a> <version-b>",
		Short: "Diff two versions of the same dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var diff struct {
				Related        bool   `json:"related"`
				CommonAncestor string `json:"common_ancestor,omitempty"`
				RowDelta       int64  `json:"row_delta"`
				ColumnDelta    int    `json:"column_delta"`
				StepsBetween   []struct {
					Direction string         `json:"direction"`
					Steps     []stepResource `json:"steps"`
				} `json:"steps_between,omitempty"`
			}
			path := fmt.Sprintf("/v1/versions/%s/compare/%s",
				url.PathEscape(args[0]), url.PathEscape(args[1]))
			if err := client.Get(path, &diff); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), diff)
			}
			out := cmd.OutOrStdout()
			if !diff.Related {
				fmt.Fprintln(out, "Versions are unrelated (no common ancestor)")
				return nil
			}
			fmt.Fprintf(out, "Common ancestor: %s\n", diff.CommonAncestor)
			fmt.Fprintf(out, "Row delta:       %+d\n", diff.RowDelta)
			fmt.Fprintf(out, "Column delta:    %+d\n", diff.ColumnDelta)
			for _, e := range diff.StepsBetween {
				for _, s := range e.Steps {
					fmt.Fprintf(out, "  [%s] %s %s\n", e.Direction, s.Kind, strings.Join(s.Columns, ","))
				}
			}
			return nil
		},
	}
}
