package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/filegate/clientcli"
)

var (
	downloadOutput string
	downloadStdout bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <name> [local-path]",
	Short: "Download a file from the server",
	Long: `Download a file from the server. Without a local path the file is
written to the current directory under its stored name.

Examples:
  filegate-cli download notes.txt
  filegate-cli download notes.txt ./backup/notes.txt
  filegate-cli download --stdout config.json | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
}

func runDownload(cmd *cobra.Command, args []string) error {
	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := client.Download(cmd.Context(), clientcli.DownloadOptions{
		Key:       args[0],
		LocalPath: localPath,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(os.Stdout, reader); err != nil {
			return err
		}
		// Metadata goes to stderr so it does not mix with the content.
		if jsonOutput {
			return getFormatter().FormatDownload(os.Stderr, result)
		}
		return nil
	}

	return getFormatter().FormatDownload(os.Stdout, result)
}
