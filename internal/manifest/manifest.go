// Package manifest holds the versioned registry of engine commands: every
// operation the bridge may dispatch, its parameter schema, its token cost,
// and the authorization scope it requires. The manifest is loaded once at
// startup, validated, and treated as read-only afterwards.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// Category is the closed set of command groupings.
type Category string

const (
	CategoryScene       Category = "scene"
	CategoryMaterials   Category = "materials"
	CategoryLighting    Category = "lighting"
	CategoryEnvironment Category = "environment"
	CategoryEditor      Category = "editor"
	CategoryCamera      Category = "camera"
	CategoryHistory     Category = "history"
	CategoryQuery       Category = "query"
	CategoryRuntime     Category = "runtime"
	CategoryAsset       Category = "asset"
	CategoryScripting   Category = "scripting"
	CategoryAudio       Category = "audio"
	CategoryParticles   Category = "particles"
	CategoryExport      Category = "export"
	CategoryRendering   Category = "rendering"
)

var categories = []Category{
	CategoryScene,
	CategoryMaterials,
	CategoryLighting,
	CategoryEnvironment,
	CategoryEditor,
	CategoryCamera,
	CategoryHistory,
	CategoryQuery,
	CategoryRuntime,
	CategoryAsset,
	CategoryScripting,
	CategoryAudio,
	CategoryParticles,
	CategoryExport,
	CategoryRendering,
}

// Known reports whether the category is part of the closed set.
func (c Category) Known() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Free reports whether commands in this category must cost zero tokens.
// Direct scene editing is free; generative operations cost tokens.
func (c Category) Free() bool {
	switch c {
	case CategoryScene, CategoryEditor, CategoryCamera, CategoryHistory:
		return true
	default:
		return false
	}
}

// Categories returns the closed category set in declaration order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Command describes a single invocable engine operation.
type Command struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      Category        `json:"category"`
	Parameters    json.RawMessage `json:"parameters"`
	TokenCost     int             `json:"tokenCost"`
	RequiredScope string          `json:"requiredScope"`
}

// Manifest is an ordered collection of command definitions.
type Manifest struct {
	Version  string    `json:"version"`
	Commands []Command `json:"commands"`
}

// Lookup returns the command with the given name.
func (m *Manifest) Lookup(name string) (*Command, bool) {
	for i := range m.Commands {
		if m.Commands[i].Name == name {
			return &m.Commands[i], true
		}
	}
	return nil, false
}

// List returns commands in insertion order. When category is non-empty,
// only commands in that category are returned.
func (m *Manifest) List(category Category) []Command {
	if category == "" {
		return append([]Command(nil), m.Commands...)
	}
	var out []Command
	for _, cmd := range m.Commands {
		if cmd.Category == category {
			out = append(out, cmd)
		}
	}
	return out
}

// Parse decodes and validates a manifest interchange document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("parsing manifest: %w", err)}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}
