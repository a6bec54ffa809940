// Package config provides configuration utilities for the application.
package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/coinconductor/coinconductor/internal/classify"
)

// LoadClassifierConfig loads classifier configuration, preferring Viper keys
// (config file or COINCONDUCTOR_ env vars) and falling back to the provider
// API key environment variables.
func LoadClassifierConfig() classify.Config {
	cfg := classify.Config{
		Provider:    viper.GetString("classifier.provider"),
		APIKey:      viper.GetString("classifier.api_key"),
		Model:       viper.GetString("classifier.model"),
		Temperature: viper.GetFloat64("classifier.temperature"),
		MaxTokens:   viper.GetInt("classifier.max_tokens"),
	}

	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case "openai", "gpt":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	return cfg
}
