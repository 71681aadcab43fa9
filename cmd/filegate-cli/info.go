package main

import (
	"os"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show metadata for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	info, err := client.Info(cmd.Context(), args[0])
	if err != nil {
		return handleError(os.Stderr, err)
	}

	return getFormatter().FormatInfo(os.Stdout, info)
}
