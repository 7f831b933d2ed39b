package config

import "time"

// Config is the top-level forgelink configuration.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Reconnect ReconnectConfig `toml:"reconnect"`
	Caller    CallerConfig    `toml:"caller"`
	Billing   BillingConfig   `toml:"billing"`
	Manifest  ManifestConfig  `toml:"manifest"`
	Cache     CacheConfig     `toml:"cache"`
}

// EngineConfig describes the engine websocket endpoint and its handshake.
type EngineConfig struct {
	URL string `toml:"url"`

	// AuthToken is the bearer credential attached to the handshake.
	// Leaving it empty is a development mode: the daemon connects
	// unauthenticated and logs a warning on every attempt.
	AuthToken string `toml:"auth_token"`

	// RequireAuth makes a missing token a startup error instead of a
	// warned-about development mode.
	RequireAuth bool `toml:"require_auth"`

	CommandTimeout string            `toml:"command_timeout"`
	Headers        map[string]string `toml:"headers"`
}

// ReconnectConfig tunes the backoff between reconnection attempts.
type ReconnectConfig struct {
	BaseDelay string `toml:"base_delay"`
	MaxDelay  string `toml:"max_delay"`
}

// CallerConfig is the local caller's entitlement context.
type CallerConfig struct {
	Tier   string   `toml:"tier"`
	Scopes []string `toml:"scopes"`
}

// BillingConfig seeds the local token ledger.
type BillingConfig struct {
	TokenBudget int `toml:"token_budget"`
}

// ManifestConfig points at the command manifest document. An empty path
// selects the builtin catalog.
type ManifestConfig struct {
	Path string `toml:"path"`
}

// CacheConfig controls result caching for query-category commands.
type CacheConfig struct {
	QueryTTL string `toml:"query_ttl"`
}

// Caller tiers.
const (
	TierFree   = "free"
	TierPro    = "pro"
	TierStudio = "studio"
)

// Defaults applied when the config file is absent or fields are empty.
const (
	DefaultCommandTimeout = "30s"
	DefaultBaseDelay      = "1s"
	DefaultMaxDelay       = "30s"
	DefaultQueryTTL       = "30s"
	DefaultTokenBudget    = 200
)

// Scopes granted when the config does not set any: the free direct-editing
// surface plus read-only queries.
var defaultScopes = []string{
	"scene:read",
	"scene:write",
	"editor:write",
	"camera:write",
	"history:write",
	"query:read",
}

// CommandTimeout returns the parsed command timeout. Validate guarantees
// parseability for loaded configs.
func (c *Config) CommandTimeout() time.Duration {
	return parseDurationOr(c.Engine.CommandTimeout, DefaultCommandTimeout)
}

// ReconnectBase returns the parsed backoff base delay.
func (c *Config) ReconnectBase() time.Duration {
	return parseDurationOr(c.Reconnect.BaseDelay, DefaultBaseDelay)
}

// ReconnectMax returns the parsed backoff cap.
func (c *Config) ReconnectMax() time.Duration {
	return parseDurationOr(c.Reconnect.MaxDelay, DefaultMaxDelay)
}

// QueryCacheTTL returns the parsed query cache TTL. Zero disables caching.
func (c *Config) QueryCacheTTL() time.Duration {
	if c.Cache.QueryTTL == "" {
		return 0
	}
	return parseDurationOr(c.Cache.QueryTTL, "0s")
}

func parseDurationOr(value, fallback string) time.Duration {
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.CommandTimeout == "" {
		cfg.Engine.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.Reconnect.BaseDelay == "" {
		cfg.Reconnect.BaseDelay = DefaultBaseDelay
	}
	if cfg.Reconnect.MaxDelay == "" {
		cfg.Reconnect.MaxDelay = DefaultMaxDelay
	}
	if cfg.Cache.QueryTTL == "" {
		cfg.Cache.QueryTTL = DefaultQueryTTL
	}
	if cfg.Caller.Tier == "" {
		cfg.Caller.Tier = TierFree
	}
	if len(cfg.Caller.Scopes) == 0 {
		cfg.Caller.Scopes = append([]string(nil), defaultScopes...)
	}
	if cfg.Billing.TokenBudget == 0 {
		cfg.Billing.TokenBudget = DefaultTokenBudget
	}
}
