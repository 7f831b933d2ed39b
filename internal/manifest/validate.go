package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var scopeRe = regexp.MustCompile(`^[a-z]+:(read|write)$`)

// ValidationError wraps the joined validation failures for a manifest.
// A manifest that fails validation must never be served; callers refuse
// to start instead.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks manifest invariants and returns actionable errors.
func (m *Manifest) Validate() error {
	var errs []error

	if m.Version == "" {
		errs = append(errs, errors.New("missing version"))
	}
	if len(m.Commands) == 0 {
		errs = append(errs, errors.New("manifest has no commands"))
	}

	seen := make(map[string]struct{}, len(m.Commands))
	for i, cmd := range m.Commands {
		label := fmt.Sprintf("commands[%d]", i)
		if cmd.Name != "" {
			label = fmt.Sprintf("commands[%d] (%s)", i, cmd.Name)
		}

		if cmd.Name == "" {
			errs = append(errs, fmt.Errorf("%s: missing name", label))
		} else if _, dup := seen[cmd.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate command name %q", label, cmd.Name))
		} else {
			seen[cmd.Name] = struct{}{}
		}

		if cmd.Description == "" {
			errs = append(errs, fmt.Errorf("%s: missing description", label))
		}

		switch {
		case cmd.Category == "":
			errs = append(errs, fmt.Errorf("%s: missing category", label))
		case !cmd.Category.Known():
			errs = append(errs, fmt.Errorf("%s: unknown category %q", label, cmd.Category))
		}

		if err := validateParameters(cmd.Parameters); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}

		if cmd.TokenCost < 0 {
			errs = append(errs, fmt.Errorf("%s: tokenCost must be non-negative, got %d", label, cmd.TokenCost))
		}
		if cmd.Category.Known() && cmd.Category.Free() && cmd.TokenCost != 0 {
			errs = append(errs, fmt.Errorf("%s: category %q commands must cost 0 tokens, got %d", label, cmd.Category, cmd.TokenCost))
		}

		switch {
		case cmd.RequiredScope == "":
			errs = append(errs, fmt.Errorf("%s: missing requiredScope", label))
		case !scopeRe.MatchString(cmd.RequiredScope):
			errs = append(errs, fmt.Errorf("%s: requiredScope %q does not match namespace:read|write", label, cmd.RequiredScope))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Err: errors.Join(errs...)}
	}
	return nil
}

// ValidScope reports whether a scope string is well-formed.
func ValidScope(scope string) bool {
	return scopeRe.MatchString(scope)
}

func validateParameters(raw json.RawMessage) error {
	if len(raw) == 0 {
		return errors.New("missing parameters schema")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parameters is not a JSON object: %w", err)
	}

	var typ string
	if err := json.Unmarshal(doc["type"], &typ); err != nil || typ != "object" {
		return errors.New(`parameters schema must have type "object"`)
	}

	props, ok := doc["properties"]
	if !ok {
		return errors.New("parameters schema missing properties")
	}
	var propMap map[string]json.RawMessage
	if err := json.Unmarshal(props, &propMap); err != nil {
		return fmt.Errorf("parameters properties is not an object: %w", err)
	}
	return nil
}
