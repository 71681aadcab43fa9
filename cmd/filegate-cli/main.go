package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/filegate/clientcli"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	timeout    time.Duration
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "filegate-cli",
	Version: version,
	Short:   "Client for the filegate file gateway",
	Long: `filegate-cli uploads, downloads, lists and deletes files on a filegate server.

Connection settings are resolved in this order (later wins):
  1. profile from the config file (~/.filegate/config.yaml, or FILEGATE_CLI_CONFIG)
  2. FILEGATE_ENDPOINT and FILEGATE_TIMEOUT
  3. --endpoint and --timeout`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.filegate/config.yaml, env: FILEGATE_CLI_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: FILEGATE_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: http://localhost:8080, env: FILEGATE_ENDPOINT)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "time to wait for a response (default: 30s, env: FILEGATE_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var exitErr *exitError
		if !errors.As(err, &exitErr) {
			_ = getFormatter().FormatError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// getConfigPath returns the profile file to use.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges config from the profile file, env vars, and flags
// (flags take precedence).
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	profileName := profile
	if profileName == "" {
		profileName = clientcli.ProfileFromEnv()
	}
	explicit := cfgFile != "" || clientcli.ConfigPathFromEnv() != "" || profileName != ""

	if configPath := getConfigPath(); configPath != "" {
		file, err := clientcli.LoadConfigFile(configPath)
		switch {
		case err == nil:
			p, profileErr := file.GetProfile(profileName)
			if profileErr != nil && (profileName != "" || !errors.Is(profileErr, clientcli.ErrNoProfiles)) {
				return nil, profileErr
			}
			configs = append(configs, clientcli.ConfigFromProfile(p))
		case explicit:
			// Only error if the user asked for a config file or profile.
			return nil, err
		}
	}

	configs = append(configs,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{Endpoint: endpoint, Timeout: timeout},
	)

	return clientcli.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	return clientcli.New(cfg)
}

// handleError prints err with the active formatter and returns an exitError
// so main does not print it a second time.
func handleError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return &exitError{code: 1}
}

// exitError is returned when we want to exit with a specific code
// but don't want to print an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
