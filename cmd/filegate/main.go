package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/filegate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "filegate",
	Short:   "HTTP file gateway backed by S3-compatible object storage",
	Long: `Filegate exposes a small REST API for uploading, downloading, listing
and deleting files, and stores them in an S3-compatible bucket (or a local
directory for development).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path(s), later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: FILEGATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("store-type", "", "object store backend: s3, filesystem (env: FILEGATE_STORE_TYPE)")
	rootCmd.PersistentFlags().String("store-endpoint", "", "S3 endpoint, host:port or URL (env: FILEGATE_STORE_ENDPOINT)")
	rootCmd.PersistentFlags().String("store-path", "", "root directory for the filesystem store (env: FILEGATE_STORE_PATH)")
	rootCmd.PersistentFlags().String("bucket", "", "bucket name (env: FILEGATE_STORE_BUCKET)")
}

// readConfig loads configuration from the --config files, FILEGATE_
// environment variables and any flags set on cmd.
func readConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("config")
	return config.Load(files, cmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
