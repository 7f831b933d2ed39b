package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	t.Setenv("FORGELINK_ENGINE_URL", "")
	t.Setenv("FORGELINK_ENGINE_TOKEN", "")
	t.Setenv("FORGELINK_MANIFEST", "")
	os.Unsetenv("FORGELINK_REQUIRE_AUTH")
}

func TestLoadFromParsesFullConfig(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
[engine]
url = "wss://engine.example.com/bridge"
auth_token = "tok"
command_timeout = "45s"

[reconnect]
base_delay = "500ms"
max_delay = "10s"

[caller]
tier = "pro"
scopes = ["scene:write", "asset:write"]

[billing]
token_budget = 500

[cache]
query_ttl = "5s"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v, want nil", err)
	}
	if cfg.Engine.URL != "wss://engine.example.com/bridge" {
		t.Fatalf("url = %q", cfg.Engine.URL)
	}
	if cfg.CommandTimeout() != 45*time.Second {
		t.Fatalf("CommandTimeout() = %s, want 45s", cfg.CommandTimeout())
	}
	if cfg.ReconnectBase() != 500*time.Millisecond || cfg.ReconnectMax() != 10*time.Second {
		t.Fatalf("reconnect = %s/%s, want 500ms/10s", cfg.ReconnectBase(), cfg.ReconnectMax())
	}
	if cfg.Caller.Tier != TierPro || len(cfg.Caller.Scopes) != 2 {
		t.Fatalf("caller = %+v", cfg.Caller)
	}
	if cfg.Billing.TokenBudget != 500 {
		t.Fatalf("token_budget = %d, want 500", cfg.Billing.TokenBudget)
	}
	if cfg.QueryCacheTTL() != 5*time.Second {
		t.Fatalf("QueryCacheTTL() = %s, want 5s", cfg.QueryCacheTTL())
	}
}

func TestLoadFromMissingFileYieldsDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v, want nil", err)
	}
	if cfg.Engine.CommandTimeout != DefaultCommandTimeout {
		t.Fatalf("command_timeout = %q, want default", cfg.Engine.CommandTimeout)
	}
	if cfg.Caller.Tier != TierFree || len(cfg.Caller.Scopes) == 0 {
		t.Fatalf("caller defaults = %+v", cfg.Caller)
	}
	if cfg.Billing.TokenBudget != DefaultTokenBudget {
		t.Fatalf("token_budget = %d, want %d", cfg.Billing.TokenBudget, DefaultTokenBudget)
	}
}

func TestLoadFromRejectsMalformedTOML(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `[engine` + "\n")

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("LoadFrom() error = nil, want non-nil")
	}
}

func TestLoadFromExpandsEnvPlaceholders(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TEST_ENGINE_TOKEN", "from-env")
	path := writeConfig(t, `
[engine]
url = "ws://127.0.0.1:7447/bridge"
auth_token = "${TEST_ENGINE_TOKEN}"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.AuthToken != "from-env" {
		t.Fatalf("auth_token = %q, want %q", cfg.Engine.AuthToken, "from-env")
	}
}

func TestLoadFromLeavesUnresolvedPlaceholders(t *testing.T) {
	clearEnvOverrides(t)
	os.Unsetenv("TEST_UNSET_TOKEN")
	path := writeConfig(t, `
[engine]
url = "ws://127.0.0.1:7447/bridge"
auth_token = "${TEST_UNSET_TOKEN}"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.AuthToken != "${TEST_UNSET_TOKEN}" {
		t.Fatalf("auth_token = %q, want unresolved placeholder", cfg.Engine.AuthToken)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("FORGELINK_ENGINE_URL", "ws://10.0.0.5:7447/bridge")
	t.Setenv("FORGELINK_ENGINE_TOKEN", "override-token")
	t.Setenv("FORGELINK_REQUIRE_AUTH", "true")
	path := writeConfig(t, `
[engine]
url = "ws://127.0.0.1:7447/bridge"
auth_token = "file-token"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.URL != "ws://10.0.0.5:7447/bridge" {
		t.Fatalf("url = %q, want env override", cfg.Engine.URL)
	}
	if cfg.Engine.AuthToken != "override-token" {
		t.Fatalf("auth_token = %q, want env override", cfg.Engine.AuthToken)
	}
	if !cfg.Engine.RequireAuth {
		t.Fatal("require_auth = false, want env override true")
	}
}
