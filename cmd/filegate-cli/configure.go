package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/filegate/clientcli"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage server profiles",
	Long: `Manage server profiles in the configuration file.

Profiles save connection settings for several filegate servers. Switch
between them with --profile or FILEGATE_PROFILE.

Configuration is stored in ~/.filegate/config.yaml`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all profiles configured in the config file.

The default profile is marked with an asterisk (*).`,
	Args: cobra.NoArgs,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Long: `Add a profile interactively.

You will be prompted for the endpoint URL, an optional response timeout,
and whether to make the profile the default. The server's health endpoint
is checked before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long:  `Show details for a profile. If no name is provided, shows the default profile.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigureShow,
}

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)
}

func runConfigureList(_ *cobra.Command, _ []string) error {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg == nil || len(cfg.Profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("Run 'filegate-cli configure add <name>' to create one.")
		return nil
	}

	return getFormatter().FormatProfileList(os.Stdout, cfg.Profiles, cfg.DefaultName())
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = &clientcli.ConfigFile{}
	}

	existing, _ := cfg.GetProfile(name)
	if existing != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			return handlePromptError(promptErr)
		}
	}

	endpointDefault := clientcli.DefaultEndpoint
	if existing != nil {
		endpointDefault = existing.Endpoint
	}
	endpointPrompt := promptui.Prompt{
		Label:    "Endpoint URL",
		Default:  endpointDefault,
		Validate: clientcli.ValidateEndpoint,
	}
	endpointURL, err := endpointPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	timeoutPrompt := promptui.Prompt{
		Label:   "Response timeout (e.g. 30s, empty for default)",
		Default: "",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return nil
			}
			d, parseErr := time.ParseDuration(strings.TrimSpace(input))
			if parseErr != nil {
				return parseErr
			}
			if d < 0 {
				return errors.New("timeout must be positive")
			}
			return nil
		},
	}
	timeoutStr, err := timeoutPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	var profileTimeout time.Duration
	if s := strings.TrimSpace(timeoutStr); s != "" {
		profileTimeout, _ = time.ParseDuration(s)
	}

	setAsDefault := len(cfg.Profiles) == 0 || (existing != nil && len(cfg.Profiles) == 1)
	if !setAsDefault {
		defaultPrompt := promptui.Prompt{
			Label:     "Set as default profile",
			IsConfirm: true,
		}
		if _, promptErr := defaultPrompt.Run(); promptErr == nil {
			setAsDefault = true
		}
	}

	newProfile := clientcli.Profile{
		Name:     name,
		Endpoint: strings.TrimSuffix(endpointURL, "/"),
		Timeout:  profileTimeout,
	}

	fmt.Print("Checking server health... ")
	if healthErr := checkServer(cmd.Context(), newProfile); healthErr != nil {
		fmt.Println("FAILED")
		fmt.Printf("Warning: %v\n", healthErr)

		continuePrompt := promptui.Prompt{
			Label:     "Save profile anyway",
			IsConfirm: true,
		}
		if _, promptErr := continuePrompt.Run(); promptErr != nil {
			return handlePromptError(promptErr)
		}
	} else {
		fmt.Println("OK")
	}

	if existing != nil {
		newProfile.Default = existing.Default
		err = cfg.UpdateProfile(newProfile)
	} else {
		err = cfg.AddProfile(newProfile)
	}
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if setAsDefault {
		if err := cfg.SetDefault(name); err != nil {
			return err
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if existing != nil {
		fmt.Printf("Profile '%s' updated.\n", name)
	} else {
		fmt.Printf("Profile '%s' added.\n", name)
	}
	if setAsDefault {
		fmt.Println("Set as default profile.")
	}

	return nil
}

func runConfigureRemove(_ *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err = cfg.GetProfile(name); err != nil {
		return err
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove profile '%s'", name),
		IsConfirm: true,
	}
	if _, promptErr := prompt.Run(); promptErr != nil {
		return handlePromptError(promptErr)
	}

	if err := cfg.RemoveProfile(name); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(_ *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.SetDefault(name); err != nil {
		return err
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(_ *cobra.Command, args []string) error {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(os.Stdout, *p, p.Name == cfg.DefaultName())
}

// checkServer calls the profile's health endpoint with a short deadline.
func checkServer(ctx context.Context, p clientcli.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := clientcli.New(clientcli.ConfigFromProfile(&p))
	if err != nil {
		return err
	}

	result, err := client.Health(ctx)
	if err != nil {
		return err
	}
	if !result.Healthy() {
		return fmt.Errorf("server reports status %q", result.Status)
	}
	return nil
}

// handlePromptError treats an aborted or declined prompt as a cancellation.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		return &exitError{code: 1}
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
