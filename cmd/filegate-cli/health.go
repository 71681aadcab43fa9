package main

import (
	"os"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the server can reach its object store",
	Long: `Check the server's health endpoint. Exits non-zero when the server is
unreachable or reports a degraded object store.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Health(cmd.Context())
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatHealth(os.Stdout, result); err != nil {
		return err
	}
	if !result.Healthy() {
		return &exitError{code: 1}
	}
	return nil
}
