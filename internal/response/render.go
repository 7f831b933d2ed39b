package response

import (
	"bytes"
	"encoding/json"
)

// Render formats an engine command result for stdout. JSON objects and
// arrays are re-indented, bare JSON strings are unquoted, and everything
// gets a trailing newline so shell pipelines behave.
func Render(result json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("ok\n")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return ensureTrailingNewline([]byte(s))
		}
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		var buf bytes.Buffer
		if err := json.Indent(&buf, trimmed, "", "  "); err == nil {
			return ensureTrailingNewline(buf.Bytes())
		}
	}

	// Numbers, booleans, and anything malformed pass through as-is.
	return ensureTrailingNewline(trimmed)
}

// RenderCompact formats a result on a single line, for --quiet output and
// for the MCP tool surface where pretty-printing just wastes tokens.
func RenderCompact(result json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("ok\n")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return ensureTrailingNewline([]byte(s))
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return ensureTrailingNewline(buf.Bytes())
	}
	return ensureTrailingNewline(trimmed)
}

func ensureTrailingNewline(out []byte) []byte {
	if len(out) == 0 {
		return out
	}
	if out[len(out)-1] != '\n' {
		return append(out, '\n')
	}
	return out
}
