// Package tools resolves activation eligibility and display ordering of the
// optional tool panels attached to a stage.
package tools

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/licitaflow/stagegate/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Tools []domain.ToolMetadata `yaml:"tools"`
}

// Catalog is the immutable metadata table for the closed set of tool kinds.
type Catalog struct {
	entries map[domain.ToolKind]domain.ToolMetadata
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog override from a YAML file. An empty path
// yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, domain.WrapEngineError(domain.ErrInvalidToolCatalog.Code, "parse tool catalog", err)
	}
	return NewCatalog(file.Tools)
}

// NewCatalog builds a catalog from metadata entries. Every entry must name a
// known tool kind, every known kind must be present exactly once, and every
// dependsOn must point at another known kind.
func NewCatalog(entries []domain.ToolMetadata) (*Catalog, error) {
	var problems []string
	table := make(map[domain.ToolKind]domain.ToolMetadata, len(entries))

	for _, meta := range entries {
		if !meta.Kind.IsKnown() {
			problems = append(problems, fmt.Sprintf("unknown tool kind %q", meta.Kind))
			continue
		}
		if _, dup := table[meta.Kind]; dup {
			problems = append(problems, fmt.Sprintf("duplicate tool kind %q", meta.Kind))
			continue
		}
		table[meta.Kind] = meta
	}
	for _, kind := range domain.AllToolKinds {
		meta, ok := table[kind]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing tool kind %q", kind))
			continue
		}
		if meta.DependsOn == "" {
			continue
		}
		if !meta.DependsOn.IsKnown() {
			problems = append(problems, fmt.Sprintf("tool %q depends on unknown kind %q", kind, meta.DependsOn))
		}
		if meta.DependsOn == kind {
			problems = append(problems, fmt.Sprintf("tool %q depends on itself", kind))
		}
	}

	if len(problems) > 0 {
		return nil, &domain.EngineError{
			Code:    domain.ErrInvalidToolCatalog.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrInvalidToolCatalog.Message, problems),
		}
	}
	return &Catalog{entries: table}, nil
}

// MetadataOf returns the metadata for a tool kind.
func (c *Catalog) MetadataOf(tool domain.ToolKind) (domain.ToolMetadata, error) {
	meta, ok := c.entries[tool]
	if !ok {
		return domain.ToolMetadata{}, domain.NewEngineError(
			domain.ErrUnknownTool.Code,
			fmt.Sprintf("%s: %q", domain.ErrUnknownTool.Message, tool),
		)
	}
	return meta, nil
}

// All returns the metadata of every tool in canonical order.
func (c *Catalog) All() []domain.ToolMetadata {
	out := make([]domain.ToolMetadata, 0, len(domain.AllToolKinds))
	for _, kind := range domain.AllToolKinds {
		out = append(out, c.entries[kind])
	}
	return out
}
