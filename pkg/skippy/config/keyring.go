package config

import (
	"github.com/zalando/go-keyring"
)

const keyringService = "skippy"

// StoreSecret saves a secret to the OS keyring (GNOME Keyring/KDE Wallet
// on Linux, Keychain on macOS, Credential Manager on Windows), grounded
// on pkg/devclaw/copilot/keyring.go's StoreKeyring/GetKeyring/DeleteKeyring
// trio, narrowed to the two secrets Skippy actually has: the Ollama API
// key and the Discord bot token.
func StoreSecret(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// GetSecret retrieves a secret from the OS keyring, returning "" if it
// isn't set rather than an error — callers treat an empty result as
// "fall through to skippy.json/.env".
func GetSecret(name string) string {
	val, err := keyring.Get(keyringService, name)
	if err != nil {
		return ""
	}
	return val
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(name string) error {
	return keyring.Delete(keyringService, name)
}

// SecretStoreAvailable probes the OS keyring with a throwaway write+delete.
func SecretStoreAvailable() bool {
	const probeKey = "__skippy_probe__"
	if err := keyring.Set(keyringService, probeKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probeKey)
	return true
}

// ResolveSecrets fills cfg's Ollama.APIKey and Discord.Token from the OS
// keyring when the config document left them blank, following the same
// "keyring backstops the config file" precedence as ResolveAPIKey in the
// teacher package, minus the encrypted-vault tier (Skippy has no vault —
// see DESIGN.md).
func ResolveSecrets(cfg *Config) {
	if cfg.Ollama.APIKey == "" {
		if v := GetSecret("ollama_api_key"); v != "" {
			cfg.Ollama.APIKey = v
		}
	}
	if cfg.Discord.Token == "" {
		if v := GetSecret("discord_token"); v != "" {
			cfg.Discord.Token = v
		}
	}
}
