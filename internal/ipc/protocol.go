package ipc

import (
	"encoding/json"
	"time"
)

// Request is sent from the CLI (or the MCP tool server) to the daemon over
// the Unix socket.
type Request struct {
	Nonce   string          `json:"nonce"`              // daemon nonce for auth
	Type    string          `json:"type"`               // "status", "commands", "schema", "execute", "snapshot", "shutdown"
	Command string          `json:"command,omitempty"`  // target command name
	Args    json.RawMessage `json:"args,omitempty"`     // command payload
	Category string         `json:"category,omitempty"` // filter for "commands"
	Channel string          `json:"channel,omitempty"`  // push channel for "snapshot"
	Cache   *time.Duration  `json:"cache,omitempty"`    // query cache TTL override; 0 disables
	Verbose bool            `json:"verbose,omitempty"`
}

// Response is sent from the daemon back to the client.
type Response struct {
	Content  []byte `json:"content"`          // raw output for stdout
	ExitCode int    `json:"exit_code"`        // 0=ok, 1=command error, 2=usage error, 3=internal error
	Stderr   string `json:"stderr,omitempty"` // error message for stderr
}

// Exit codes.
const (
	ExitOK         = 0
	ExitCommandErr = 1
	ExitUsageErr   = 2
	ExitInternal   = 3
)
