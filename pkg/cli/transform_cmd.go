package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// loadSteps reads a JSON array of transformation steps from a file.
func loadSteps(path string) ([]stepResource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var steps []stepResource
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("parse steps from %s: %w", path, err)
	}
	return steps, nil
}

type reportResource struct {
	Status   string `json:"status"`
	Findings []struct {
		StepIndex int    `json:"step_index"`
		Severity  string `json:"severity"`
		Message   string `json:"message"`
	} `json:"findings"`
}

func printReport(cmd *cobra.Command, report *reportResource) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validation: %s\n", report.Status)
	for _, f := range report.Findings {
		fmt.Fprintf(out, "  [%s] step %d: %s\n", f.Severity, f.StepIndex, f.Message)
	}
}

func newPreviewCmd(client *Client) *cobra.Command {
	var stepsFile string
	cmd := &cobra.Command{
		Use:   "preview <dataset>",
		Short: "Dry-run transformation steps against a dataset head",
		Long: `Run transformation steps in preview mode. Previews execute on a
deterministic row sample, commit nothing, and report the projected shape
change alongside before/after samples.`,
		Example: `  refine preview churn --steps-file steps.json
  refine preview churn --steps-file steps.json --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := loadSteps(stepsFile)
			if err != nil {
				return err
			}
			var resp struct {
				Report     *reportResource `json:"report"`
				RowsBefore int64           `json:"rows_before"`
				RowsAfter  int64           `json:"rows_after"`
				SampleAfter *struct {
					Header []string   `json:"header"`
					Rows   [][]string `json:"rows"`
				} `json:"sample_after"`
			}
			path := "/v1/datasets/" + url.PathEscape(args[0]) + "/preview"
			if err := client.Do("POST", path, map[string]any{"steps": steps}, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			if resp.Report != nil {
				printReport(cmd, resp.Report)
			}
			fmt.Fprintf(out, "Rows: %d -> %d\n", resp.RowsBefore, resp.RowsAfter)
			if resp.SampleAfter != nil && len(resp.SampleAfter.Rows) > 0 {
				fmt.Fprintln(out, "\nSample after:")
				limit := len(resp.SampleAfter.Rows)
				if limit > 10 {
					limit = 10
				}
				if err := printTable(out, resp.SampleAfter.Header, resp.SampleAfter.Rows[:limit]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stepsFile, "steps-file", "", "JSON file with the step sequence (required)")
	_ = cmd.MarkFlagRequired("steps-file")
	return cmd
}

func newApplyCmd(client *Client) *cobra.Command {
	var (
		stepsFile string
		requestID string
		wait      bool
	)
	cmd := &cobra.Command{
		Use:   "apply <dataset>",
		Short: "Apply transformation steps to a dataset head",
		Long: `Submit transformation steps for asynchronous application. The server
returns a job immediately; pass --wait to poll until the job reaches a
terminal state.`,
		Example: `  refine apply churn --steps-file steps.json
  refine apply churn --steps-file steps.json --wait
  refine apply churn --steps-file steps.json --request-id nightly-2026-08-29`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := loadSteps(stepsFile)
			if err != nil {
				return err
			}
			var job jobResource
			path := "/v1/datasets/" + url.PathEscape(args[0]) + "/apply"
			body := map[string]any{"steps": steps, "request_id": requestID}
			if err := client.Do("POST", path, body, &job); err != nil {
				return err
			}
			if wait {
				job, err = pollJob(client, job.ID, 5*time.Minute)
				if err != nil {
					return err
				}
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd, &job)
			if job.Status == "FAILED" {
				return fmt.Errorf("apply job %s failed", job.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stepsFile, "steps-file", "", "JSON file with the step sequence (required)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Idempotency key; resubmissions return the original job")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job completes")
	_ = cmd.MarkFlagRequired("steps-file")
	return cmd
}

func pollJob(client *Client, id string, timeout time.Duration) (jobResource, error) {
	deadline := time.Now().Add(timeout)
	for {
		var job jobResource
		if err := client.Get("/v1/apply-jobs/"+url.PathEscape(id), &job); err != nil {
			return jobResource{}, err
		}
		switch job.Status {
		case "SUCCEEDED", "FAILED", "CANCELED":
			return job, nil
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("job %s still %s after %s", id, job.Status, timeout)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printJob(cmd *cobra.Command, job *jobResource) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:     %s\n", job.ID)
	fmt.Fprintf(out, "Status:  %s (attempt %d)\n", job.Status, job.Attempt)
	if job.ResultVersionID != nil {
		fmt.Fprintf(out, "Version: %s\n", *job.ResultVersionID)
	}
	if job.ErrorMessage != nil {
		fmt.Fprintf(out, "Error:   %s\n", *job.ErrorMessage)
	}
}

func newJobCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and cancel apply jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <job-id>",
		Short: "Show an apply job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job jobResource
			if err := client.Get("/v1/apply-jobs/"+url.PathEscape(args[0]), &job); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd, &job)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running apply job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job jobResource
			path := "/v1/apply-jobs/" + url.PathEscape(args[0]) + "/cancel"
			if err := client.Do("POST", path, nil, &job); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), job)
			}
			printJob(cmd, &job)
			return nil
		},
	})
	return cmd
}
