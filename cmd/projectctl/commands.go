package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check projectd server health",
		Long: `Check the health status of the projectd HTTP server.

Examples:
  # Check health
  projectctl health

  # Check health on a different server
  projectctl health --server http://localhost:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Status  string `json:"status"`
				Version string `json:"version"`
			}
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", resp.Status)
			if resp.Version != "" {
				fmt.Fprintf(out, "Server Version: %s\n", resp.Version)
			}
			fmt.Fprintf(out, "Server URL: %s\n", opts.server)
			return nil
		},
	}
}

func newProjectsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Read and create projects",
	}
	cmd.AddCommand(newProjectsListCmd(opts))
	cmd.AddCommand(newProjectsGetCmd(opts))
	cmd.AddCommand(newProjectsCreateCmd(opts))
	return cmd
}

func newProjectsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var projects []json.RawMessage
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/projects", nil, &projects); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), projects)
		},
	}
}

func newProjectsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p json.RawMessage
			path := "/api/projects/" + url.PathEscape(args[0])
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, path, nil, &p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newProjectsCreateCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create -f <file>",
		Short: "Create a project from a JSON file",
		Long: `Create a project from a JSON file, or stdin when the file is "-".

Examples:
  projectctl projects create -f project.json
  echo '{"name":"alpha","startDate":"2025-01-01T00:00:00Z"}' | projectctl projects create -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("%s does not contain valid JSON", file)
			}
			var p json.RawMessage
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/projects", json.RawMessage(raw), &p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "project JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", file, err)
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
