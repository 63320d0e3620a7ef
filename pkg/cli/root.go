// Package cli implements the refine command-line client.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				if apiErr.Report != nil {
					errObj["report"] = apiErr.Report
				}
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host      string
		principal string
		output    string
	)

	rootCmd := &cobra.Command{
		Use:           "refine",
		Short:         "Dataset transformation and versioning CLI",
		Long:          "Command-line interface for the refinery dataset versioning API.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "API host URL")
	rootCmd.PersistentFlags().StringVar(&principal, "principal", "", "Principal name recorded on writes")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")

	client := NewClient(host, principal)

	// Precedence: flag > env > default.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("host") {
			if v := os.Getenv("REFINE_HOST"); v != "" {
				host = v
			}
		}
		if !cmd.Flags().Changed("principal") {
			if v := os.Getenv("REFINE_PRINCIPAL"); v != "" {
				principal = v
			}
		}
		if !cmd.Flags().Changed("output") {
			if v := os.Getenv("REFINE_OUTPUT"); v != "" {
				output = v
			}
		}
		if err := validateOutputFormat(output); err != nil {
			return err
		}
		client.BaseURL = host
		client.Principal = principal
		return nil
	}

	rootCmd.AddCommand(newDatasetCmd(client))
	rootCmd.AddCommand(newVersionCmd(client))
	rootCmd.AddCommand(newPreviewCmd(client))
	rootCmd.AddCommand(newApplyCmd(client))
	rootCmd.AddCommand(newJobCmd(client))
	rootCmd.AddCommand(newRecipeCmd(client))
	rootCmd.AddCommand(newAuditCmd(client))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
