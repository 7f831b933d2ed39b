package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are deployment-level settings that win over the config
// file, so containers can point an existing install at another engine
// without editing TOML.
type envOverrides struct {
	EngineURL   string `env:"FORGELINK_ENGINE_URL"`
	AuthToken   string `env:"FORGELINK_ENGINE_TOKEN"`
	RequireAuth *bool  `env:"FORGELINK_REQUIRE_AUTH"`
	Manifest    string `env:"FORGELINK_MANIFEST"`
}

func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}

	if o.EngineURL != "" {
		cfg.Engine.URL = o.EngineURL
	}
	if o.AuthToken != "" {
		cfg.Engine.AuthToken = o.AuthToken
	}
	if o.RequireAuth != nil {
		cfg.Engine.RequireAuth = *o.RequireAuth
	}
	if o.Manifest != "" {
		cfg.Manifest.Path = o.Manifest
	}
	return nil
}
