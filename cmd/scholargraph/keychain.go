package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rohankatakam/scholargraph/internal/config"
)

var keychainProvider string

var keychainCmd = &cobra.Command{
	Use:   "keychain",
	Short: "Manage the LLM API key stored in the OS keychain",
	Long: `Store or remove the LLM API key in the OS keychain.

The stored key is used when llm.use_keychain is true and no key is set in
the config file or environment.`,
}

var keychainSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Prompt for an API key and save it to the keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := keychainTarget()
		km := config.NewKeyringManager()
		if !km.IsAvailable() {
			return fmt.Errorf("OS keychain not available (headless system or Linux without libsecret)")
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s API key: ", provider)
		key, err := readSecret()
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		if key == "" {
			return fmt.Errorf("api key cannot be empty")
		}
		if provider == config.ProviderDeepSeek && !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("deepseek API keys start with \"sk-\"")
		}

		if err := km.SaveAPIKey(provider, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s key %s to the OS keychain\n", provider, config.MaskAPIKey(key))
		if hint := keychainHint(cfg); hint != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), hint)
		}
		return nil
	},
}

var keychainDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := keychainTarget()
		if err := config.NewKeyringManager().DeleteAPIKey(provider); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key from the OS keychain\n", provider)
		return nil
	},
}

func init() {
	keychainCmd.PersistentFlags().StringVar(&keychainProvider, "provider", "", "LLM provider (default llm.provider)")
	keychainCmd.AddCommand(keychainSetCmd)
	keychainCmd.AddCommand(keychainDeleteCmd)
}

func keychainTarget() string {
	if keychainProvider != "" {
		return strings.ToLower(keychainProvider)
	}
	return cfg.LLM.Provider
}

// readSecret reads without echo from a terminal, or a single line from piped stdin
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// keychainHint explains why a freshly saved key would still be ignored
func keychainHint(c *config.Config) string {
	if c.LLM.UseKeychain {
		return ""
	}
	return "Note: the stored key is only read when llm.use_keychain is true.\n" +
		"Set it in the config file or export SCHOLARGRAPH_LLM_USE_KEYCHAIN=true."
}
