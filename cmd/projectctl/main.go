// Package main implements projectctl, a command-line client for the
// projectd HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every command.
type options struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "projectctl",
		Short: "CLI for the projectd API",
		Long: `projectctl is a command-line interface for the projectd HTTP API.
It checks server health and reads or creates projects.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "projectd server URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("PROJECTD_TOKEN"), "bearer token (default $PROJECTD_TOKEN)")

	root.AddCommand(newHealthCmd(opts))
	root.AddCommand(newProjectsCmd(opts))
	return root
}
