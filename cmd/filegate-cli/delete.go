package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/filegate/clientcli"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete <name> [name...]",
	Aliases: []string{"rm"},
	Short:   "Delete files from the server",
	Long: `Delete one or more files from the server. You are asked to confirm
unless --yes is given.

Examples:
  filegate-cli delete notes.txt
  filegate-cli delete -y old-a.txt old-b.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if !deleteYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Delete %s", strings.Join(args, ", ")),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			if errors.Is(err, promptui.ErrInterrupt) {
				return &exitError{code: 1}
			}
			fmt.Println("Cancelled.")
			return nil
		}
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(cmd.Context(), clientcli.DeleteOptions{Keys: args})
	if err != nil {
		return handleError(os.Stderr, err)
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}
	return nil
}
