package commands

import (
	"fmt"
	"strings"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the `skippy config` command tree, grounded on
// cmd/copilot/commands/config.go's show/validate/set-key/key-status
// shape, trimmed down to the two secrets Skippy's config actually holds
// (Ollama API key, Discord token) and without that file's vault tier.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage Skippy's configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigSetKeyCmd(),
		newConfigKeyStatusCmd(),
	)
	return cmd
}

func loadCurrentConfig(cmd *cobra.Command) (config.Config, string, error) {
	dataDir, _ := cmd.Root().PersistentFlags().GetString("data-dir")
	layout, err := config.ResolveLayout(dataDir)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.Load(layout.ConfigPath)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, layout.ConfigPath, nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadCurrentConfig(cmd)
			if err != nil {
				return err
			}
			redacted := cfg
			redacted.Ollama.APIKey = maskSecret(cfg.Ollama.APIKey)
			redacted.Discord.Token = maskSecret(cfg.Discord.Token)

			fmt.Printf("# %s\n\n", path)
			data, err := yaml.Marshal(redacted)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadCurrentConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s is valid.\n", path)
			fmt.Printf("  model:        %s\n", cfg.Ollama.Model)
			fmt.Printf("  loop_limit:   %d\n", cfg.Prompt.LoopLimit)
			fmt.Printf("  discord:      %t\n", cfg.Discord.Token != "")
			fmt.Printf("  whatsapp:     %t\n", cfg.WhatsApp.Enabled)
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	var which string
	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store a secret in the OS keyring",
		Long: `Stores the Ollama API key or Discord bot token in the operating
system's native keyring instead of skippy.json, so it never sits on
disk as plaintext.

Examples:
  skippy config set-key --for ollama
  skippy config set-key --for discord`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.SecretStoreAvailable() {
				return fmt.Errorf("OS keyring is not available on this system")
			}

			var secretName string
			switch which {
			case "ollama":
				secretName = "ollama_api_key"
			case "discord":
				secretName = "discord_token"
			default:
				return fmt.Errorf("--for must be 'ollama' or 'discord', got %q", which)
			}

			fmt.Printf("Enter %s: ", which)
			value, err := term.ReadPassword(0)
			fmt.Println()
			if err != nil {
				return fmt.Errorf("reading secret: %w", err)
			}
			trimmed := strings.TrimSpace(string(value))
			if trimmed == "" {
				return fmt.Errorf("no value provided")
			}

			if err := config.StoreSecret(secretName, trimmed); err != nil {
				return fmt.Errorf("storing in keyring: %w", err)
			}
			fmt.Println("Stored in OS keyring. You can now leave the corresponding skippy.json field blank.")
			return nil
		},
	}
	cmd.Flags().StringVar(&which, "for", "", "which secret to set: ollama or discord")
	return cmd
}

func newConfigKeyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key-status",
		Short: "Show where each secret is currently resolved from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadCurrentConfig(cmd)
			if err != nil {
				return err
			}

			fmt.Println("ollama api key:")
			printKeyStatus(cfg.Ollama.APIKey, "ollama_api_key")
			fmt.Println("discord token:")
			printKeyStatus(cfg.Discord.Token, "discord_token")
			return nil
		},
	}
}

func printKeyStatus(configValue, keyringName string) {
	if !config.SecretStoreAvailable() {
		fmt.Println("  [!!] OS keyring: (not available)")
	} else if v := config.GetSecret(keyringName); v != "" {
		fmt.Printf("  [OK] OS keyring: %s\n", maskSecret(v))
	} else {
		fmt.Println("  [--] OS keyring: (not set)")
	}

	if configValue != "" {
		fmt.Printf("  [OK] config/env: %s\n", maskSecret(configValue))
	} else {
		fmt.Println("  [--] config/env: (not set)")
	}
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
