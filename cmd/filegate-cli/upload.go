package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/filegate/clientcli"
)

var uploadName string

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [local-path...]",
	Short: "Upload files to the server",
	Long: `Upload one or more files. Each file is stored under its base name
unless --name is given. Uploading a name that already exists fails with a
conflict; delete the old file first.

Examples:
  filegate-cli upload ./notes.txt
  filegate-cli upload ./a.txt ./b.txt
  filegate-cli upload --name report-2024.pdf ./report.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "store the file under this name (single file only)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Upload(cmd.Context(), clientcli.UploadOptions{
		LocalPaths: args,
		Name:       uploadName,
	})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasUploadErrors(results) {
		return &exitError{code: 1}
	}
	return nil
}
