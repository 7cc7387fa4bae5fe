package commands

import (
	"fmt"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// newSetupCmd creates the `skippy setup` command: an interactive wizard
// that writes skippy.json, grounded on
// cmd/copilot/commands/config.go's newConfigInitCmd (write
// config.DefaultConfig(), print next steps; an existing file at the
// config path is overwritten, not refused) but
// replacing that command's fixed template with a charmbracelet/huh form
// so first-run values (model, Discord token, loop limit) are captured
// directly instead of left for the user to hand-edit afterward.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactively create Skippy's configuration",
		RunE:  runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	dataDir, _ := cmd.Root().PersistentFlags().GetString("data-dir")
	layout, err := config.ResolveLayout(dataDir)
	if err != nil {
		return fmt.Errorf("resolving data layout: %w", err)
	}
	if err := layout.EnsureDirs(); err != nil {
		return fmt.Errorf("creating data directories: %w", err)
	}

	cfg := config.DefaultConfig()

	var (
		ollamaHost     = cfg.Ollama.Host
		ollamaModel    = cfg.Ollama.Model
		discordToken   string
		enableWA       bool
		loopLimit      = fmt.Sprintf("%d", cfg.Prompt.LoopLimit)
		storeInKeyring bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Ollama host").
				Description("Where Skippy reaches the model server").
				Value(&ollamaHost),
			huh.NewInput().
				Title("Ollama model").
				Value(&ollamaModel),
			huh.NewInput().
				Title("Loop limit").
				Description("Max tool-call iterations per prompt").
				Value(&loopLimit),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave blank to skip Discord").
				EchoMode(huh.EchoModePassword).
				Value(&discordToken),
			huh.NewConfirm().
				Title("Enable WhatsApp channel?").
				Value(&enableWA),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Store secrets in the OS keyring instead of skippy.json?").
				Value(&storeInKeyring),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Ollama.Host = ollamaHost
	cfg.Ollama.Model = ollamaModel
	cfg.WhatsApp.Enabled = enableWA
	fmt.Sscanf(loopLimit, "%d", &cfg.Prompt.LoopLimit)

	if discordToken != "" {
		if storeInKeyring && config.SecretStoreAvailable() {
			if err := config.StoreSecret("discord_token", discordToken); err != nil {
				return fmt.Errorf("storing discord token in keyring: %w", err)
			}
			fmt.Println("Discord token stored in OS keyring.")
		} else {
			cfg.Discord.Token = discordToken
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}
	if err := cfg.Save(layout.ConfigPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("\nWrote %s\n", layout.ConfigPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. skippy serve")
	if enableWA {
		fmt.Println("  2. Scan the QR code printed on first run to link WhatsApp")
	}
	return nil
}
