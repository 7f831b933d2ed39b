// Package config loads and validates the forgelink TOML configuration,
// with ${ENV_VAR} expansion inside values and FORGELINK_* environment
// overrides on top.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"github.com/voxelway/forgelink/internal/paths"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the config file, expands env placeholders, applies
// FORGELINK_* overrides and fills defaults. A missing file yields the
// default config (no error).
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		expandConfigEnvVars(cfg)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// ExamplePath returns the default config file path (for help messages).
func ExamplePath() string {
	return paths.ConfigFile()
}

func expandConfigEnvVars(cfg *Config) {
	cfg.Engine.URL = expandEnvVars(cfg.Engine.URL)
	cfg.Engine.AuthToken = expandEnvVars(cfg.Engine.AuthToken)
	cfg.Engine.CommandTimeout = expandEnvVars(cfg.Engine.CommandTimeout)
	for k, v := range cfg.Engine.Headers {
		cfg.Engine.Headers[k] = expandEnvVars(v)
	}
	cfg.Manifest.Path = expandEnvVars(cfg.Manifest.Path)
	for i := range cfg.Caller.Scopes {
		cfg.Caller.Scopes[i] = expandEnvVars(cfg.Caller.Scopes[i])
	}
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment
// variable, leaving unresolved placeholders as-is.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
