// Package catalog embeds the static model metadata shipped with the library:
// one JSON file per provider carrying its API-key environment variables and
// per-model limits, modalities, capabilities and per-token pricing. The
// registry joins this metadata onto models at resolution time.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

//go:embed data/*.json
var dataFS embed.FS

// Limit holds the model's context window and maximum output size in tokens.
type Limit struct {
	Context int `json:"context"`
	Output  int `json:"output"`
}

// Modalities lists the media kinds a model accepts and produces.
type Modalities struct {
	Input  []string `json:"input"`
	Output []string `json:"output"`
}

// Cost holds per-token USD prices.
type Cost struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Model is one entry of a provider's models array. Absent flags default to
// false except Temperature, which defaults to true.
type Model struct {
	ID               string      `json:"id"`
	Limit            *Limit      `json:"limit,omitempty"`
	Modalities       *Modalities `json:"modalities,omitempty"`
	Cost             *Cost       `json:"cost,omitempty"`
	Reasoning        bool        `json:"reasoning,omitempty"`
	ToolCall         bool        `json:"tool_call,omitempty"`
	Temperature      *bool       `json:"temperature,omitempty"`
	Attachment       bool        `json:"attachment,omitempty"`
	StructuredOutput bool        `json:"structured_output,omitempty"`
}

// SupportsTemperature resolves the Temperature flag with its default.
func (m Model) SupportsTemperature() bool {
	if m.Temperature == nil {
		return true
	}
	return *m.Temperature
}

// ProviderInfo is the top-level provider block of a metadata file.
type ProviderInfo struct {
	Env []string `json:"env"`
}

// File is one parsed provider metadata file.
type File struct {
	Provider ProviderInfo `json:"provider"`
	Models   []Model      `json:"models"`
}

// Model returns the entry with the given id, if present.
func (f File) Model(id string) (Model, bool) {
	for _, m := range f.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// LoadAll parses every embedded metadata file, keyed by provider id.
func LoadAll() (map[string]File, error) {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog data: %w", err)
	}
	files := make(map[string]File, len(entries))
	for _, entry := range entries {
		raw, err := dataFS.ReadFile(path.Join("data", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %s: %w", entry.Name(), err)
		}
		var file File
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file %s: %w", entry.Name(), err)
		}
		files[ProviderID(entry.Name())] = file
	}
	return files, nil
}

// ProviderID derives a provider id from a metadata file name: the extension
// is dropped and hyphens map to underscores.
func ProviderID(filename string) string {
	id := strings.TrimSuffix(path.Base(filename), ".json")
	return strings.ReplaceAll(id, "-", "_")
}
