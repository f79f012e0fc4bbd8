// prompt.go implements "companion prompt", editing the persisted custom prompt.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-companion/pkg/prefs"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Show or edit the custom prompt",
	Long: `The custom prompt replaces the primary agent's instructions for the
next session. An empty prompt restores the built-in instructions.`,
}

var promptGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the custom prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(store prefs.Store) error {
			text, err := prefs.CustomPrompt(cmd.Context(), store)
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(no custom prompt)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

var promptSetCmd = &cobra.Command{
	Use:   "set <text>",
	Short: "Save the custom prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		return withPrefs(func(store prefs.Store) error {
			if err := prefs.SetCustomPrompt(cmd.Context(), store, text); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Custom prompt saved")
			return nil
		})
	},
}

var promptClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the custom prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(store prefs.Store) error {
			if err := prefs.SetCustomPrompt(cmd.Context(), store, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Custom prompt cleared")
			return nil
		})
	},
}

func init() {
	promptCmd.AddCommand(promptGetCmd)
	promptCmd.AddCommand(promptSetCmd)
	promptCmd.AddCommand(promptClearCmd)
}

func withPrefs(fn func(prefs.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := prefs.Open(cfg.PrefsBackend, cfg.PrefsPath)
	if err != nil {
		return fmt.Errorf("opening prefs: %w", err)
	}
	defer store.Close()
	return fn(store)
}
