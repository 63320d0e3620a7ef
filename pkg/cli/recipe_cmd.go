package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newRecipeCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage reusable transformation recipes",
	}
	cmd.AddCommand(newRecipeListCmd(client))
	cmd.AddCommand(newRecipeGetCmd(client))
	cmd.AddCommand(newRecipeSaveCmd(client))
	cmd.AddCommand(newRecipeDeleteCmd(client))
	cmd.AddCommand(newRecipeApplyCmd(client))
	cmd.AddCommand(newRecipeExportCmd(client))
	cmd.AddCommand(newRecipeImportCmd(client))
	return cmd
}

func newRecipeListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var page listPage[recipeResource]
			if err := client.Get("/v1/recipes", &page); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}
			rows := make([][]string, len(page.Data))
			for i, rec := range page.Data {
				rows[i] = []string{rec.Name, fmt.Sprint(len(rec.Steps)), rec.CreatedBy,
					rec.UpdatedAt.Format("2006-01-02 15:04:05")}
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "STEPS", "CREATED BY", "UPDATED"}, rows)
		},
	}
}

func newRecipeGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec recipeResource
			if err := client.Get("/v1/recipes/"+url.PathEscape(args[0]), &rec); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name: %s\n", rec.Name)
			if rec.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", rec.Description)
			}
			for i, s := range rec.Steps {
				fmt.Fprintf(out, "  %d. %s", i+1, s.Kind)
				if len(s.Columns) > 0 {
					fmt.Fprintf(out, " %v", s.Columns)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newRecipeSaveCmd(client *Client) *cobra.Command {
	var (
		stepsFile   string
		description string
	)
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Create a recipe from a step file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := loadSteps(stepsFile)
			if err != nil {
				return err
			}
			var rec recipeResource
			body := map[string]any{"name": args[0], "description": description, "steps": steps}
			if err := client.Do("POST", "/v1/recipes", body, &rec); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved recipe %s (%d steps)\n", rec.Name, len(rec.Steps))
			return nil
		},
	}
	cmd.Flags().StringVar(&stepsFile, "steps-file", "", "JSON file with the step sequence (required)")
	cmd.Flags().StringVar(&description, "description", "", "Recipe description")
	_ = cmd.MarkFlagRequired("steps-file")
	return cmd
}

func newRecipeDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Do("DELETE", "/v1/recipes/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted recipe %s\n", args[0])
			return nil
		},
	}
}

func newRecipeApplyCmd(client *Client) *cobra.Command {
	var datasets []string
	cmd := &cobra.Command{
		Use:   "apply <name>",
		Short: "Apply a recipe to one or more datasets",
		Long: `Apply a stored recipe to each named dataset. Datasets succeed or fail
independently; a rejection on one does not roll back the others.`,
		Example: `  refine recipe apply standard-prep --dataset churn
  refine recipe apply standard-prep --dataset churn --dataset billing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Results []struct {
					DatasetName     string `json:"dataset_name"`
					ResultVersionID string `json:"result_version_id,omitempty"`
					Error           string `json:"error,omitempty"`
				} `json:"results"`
			}
			path := "/v1/recipes/" + url.PathEscape(args[0]) + "/apply"
			if err := client.Do("POST", path, map[string]any{"datasets": datasets}, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			rows := make([][]string, len(resp.Results))
			failed := 0
			for i, r := range resp.Results {
				status, detail := "ok", short(r.ResultVersionID)
				if r.Error != "" {
					status, detail = "error", r.Error
					failed++
				}
				rows[i] = []string{r.DatasetName, status, detail}
			}
			if err := printTable(cmd.OutOrStdout(), []string{"DATASET", "STATUS", "RESULT"}, rows); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d datasets failed", failed, len(resp.Results))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&datasets, "dataset", nil, "Dataset to apply to (repeatable, required)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newRecipeExportCmd(client *Client) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export a recipe as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.GetRaw("/v1/recipes/" + url.PathEscape(args[0]) + "/export")
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
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "Write the YAML to a file instead of stdout")
	return cmd
}

func newRecipeImportCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a recipe from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var rec recipeResource
			if err := client.PostRaw("/v1/recipes/import", "application/yaml", data, &rec); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported recipe %s (%d steps)\n", rec.Name, len(rec.Steps))
			return nil
		},
	}
}
