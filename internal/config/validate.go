package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/voxelway/forgelink/internal/manifest"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error

	switch {
	case strings.TrimSpace(cfg.Engine.URL) == "":
		errs = append(errs, errors.New("engine.url: missing engine websocket URL"))
	default:
		u, err := url.Parse(cfg.Engine.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("engine.url: invalid URL %q: %w", cfg.Engine.URL, err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, fmt.Errorf("engine.url: scheme must be ws or wss, got %q", u.Scheme))
		}
	}

	if cfg.Engine.RequireAuth && strings.TrimSpace(cfg.Engine.AuthToken) == "" {
		errs = append(errs, errors.New("engine.auth_token: required when engine.require_auth is set"))
	}

	errs = append(errs, validateDuration("engine.command_timeout", cfg.Engine.CommandTimeout)...)
	errs = append(errs, validateDuration("reconnect.base_delay", cfg.Reconnect.BaseDelay)...)
	errs = append(errs, validateDuration("reconnect.max_delay", cfg.Reconnect.MaxDelay)...)

	if base, maxDelay := cfg.ReconnectBase(), cfg.ReconnectMax(); base > maxDelay {
		errs = append(errs, fmt.Errorf("reconnect: base_delay %s exceeds max_delay %s", base, maxDelay))
	}

	switch cfg.Caller.Tier {
	case TierFree, TierPro, TierStudio:
	default:
		errs = append(errs, fmt.Errorf("caller.tier: must be one of free, pro, studio; got %q", cfg.Caller.Tier))
	}

	for i, scope := range cfg.Caller.Scopes {
		if !manifest.ValidScope(scope) {
			errs = append(errs, fmt.Errorf("caller.scopes[%d]: %q does not match namespace:read|write", i, scope))
		}
	}

	if cfg.Billing.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("billing.token_budget: must be non-negative, got %d", cfg.Billing.TokenBudget))
	}

	if cfg.Cache.QueryTTL != "" {
		if ttl, err := time.ParseDuration(cfg.Cache.QueryTTL); err != nil {
			errs = append(errs, fmt.Errorf("cache.query_ttl: invalid duration %q: %w", cfg.Cache.QueryTTL, err))
		} else if ttl < 0 {
			errs = append(errs, fmt.Errorf("cache.query_ttl: must be >= 0, got %q", cfg.Cache.QueryTTL))
		}
	}

	return errors.Join(errs...)
}

func validateDuration(field, value string) []error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}
	if d <= 0 {
		return []error{fmt.Errorf("%s: must be > 0, got %q", field, value)}
	}
	return nil
}
