package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newDatasetCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage datasets",
	}
	cmd.AddCommand(newDatasetUploadCmd(client))
	cmd.AddCommand(newDatasetListCmd(client))
	cmd.AddCommand(newDatasetGetCmd(client))
	cmd.AddCommand(newDatasetVersionsCmd(client))
	return cmd
}

func newDatasetUploadCmd(client *Client) *cobra.Command {
	var (
		file        string
		description string
	)
	cmd := &cobra.Command{
		Use:   "upload <name>",
		Short: "Create a dataset from a CSV file",
		Example: `  refine dataset upload churn --file churn.csv
  refine dataset upload churn --file churn.csv --description "Q3 churn export"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			var resp struct {
				Dataset datasetResource `json:"dataset"`
				Version versionResource `json:"version"`
			}
			body := map[string]string{
				"name":        args[0],
				"description": description,
				"data":        string(data),
			}
			if err := client.Do("POST", "/v1/datasets", body, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created dataset %s (id %s)\n", resp.Dataset.Name, resp.Dataset.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Root version %s: %d rows, %d columns\n",
				resp.Version.ID, resp.Version.RowCount, resp.Version.ColumnCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to upload (required)")
	cmd.Flags().StringVar(&description, "description", "", "Dataset description")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDatasetListCmd(client *Client) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var page listPage[datasetResource]
			path := fmt.Sprintf("/v1/datasets?max_results=%d", maxResults)
			if err := client.Get(path, &page); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}
			rows := make([][]string, len(page.Data))
			for i, d := range page.Data {
				head := ""
				if d.HeadVersionID != nil {
					head = short(*d.HeadVersionID)
				}
				rows[i] = []string{d.Name, short(d.ID), head, d.CreatedBy}
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "ID", "HEAD", "CREATED BY"}, rows)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 50, "Maximum number of results")
	return cmd
}

func newDatasetGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ds datasetResource
			if err := client.Get("/v1/datasets/"+url.PathEscape(args[0]), &ds); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), ds)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", ds.Name)
			fmt.Fprintf(out, "ID:          %s\n", ds.ID)
			if ds.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", ds.Description)
			}
			if ds.HeadVersionID != nil {
				fmt.Fprintf(out, "Head:        %s\n", *ds.HeadVersionID)
			}
			fmt.Fprintf(out, "Created by:  %s at %s\n", ds.CreatedBy, ds.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newDatasetVersionsCmd(client *Client) *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "versions <name>",
		Short: "List the versions of a dataset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var page listPage[versionResource]
			path := fmt.Sprintf("/v1/datasets/%s/versions?max_results=%d", url.PathEscape(args[0]), maxResults)
			if err := client.Get(path, &page); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}
			rows := make([][]string, len(page.Data))
			for i, v := range page.Data {
				parent := "-"
				if v.ParentVersionID != nil {
					parent = short(*v.ParentVersionID)
				}
				rows[i] = []string{
					short(v.ID), parent, fmt.Sprint(v.RowCount), fmt.Sprint(v.ColumnCount),
					short(v.ContentHash), v.CreatedAt.Format("2006-01-02 15:04:05"),
				}
			}
			return printTable(cmd.OutOrStdout(),
				[]string{"VERSION", "PARENT", "ROWS", "COLS", "HASH", "CREATED"}, rows)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 50, "Maximum number of results")
	return cmd
}
