package paths

import (
	"os"
	"path/filepath"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func xdgDir(envVar, fallbackSuffix string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, "forgelink")
	}
	return filepath.Join(homeDir(), fallbackSuffix, "forgelink")
}

// ConfigDir returns the forgelink config directory ($XDG_CONFIG_HOME/forgelink).
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// CacheDir returns the forgelink cache directory ($XDG_CACHE_HOME/forgelink).
func CacheDir() string {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// StateDir returns the forgelink state directory ($XDG_STATE_HOME/forgelink).
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// RuntimeDir returns the forgelink runtime directory for sockets and state.
// Falls back to $XDG_STATE_HOME/forgelink if XDG_RUNTIME_DIR is unset.
func RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, "forgelink")
	}
	return StateDir()
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// LedgerFile returns the path to the token ledger file.
func LedgerFile() string {
	return filepath.Join(StateDir(), "ledger.json")
}

// SocketPath returns the path to the daemon Unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "daemon.sock")
}

// StatePath returns the path to the daemon state file (contains nonce).
func StatePath() string {
	return filepath.Join(RuntimeDir(), "daemon.state")
}

// LockPath returns the path to the daemon file lock.
func LockPath() string {
	return filepath.Join(RuntimeDir(), "daemon.lock")
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
