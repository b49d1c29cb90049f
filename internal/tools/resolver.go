package tools

import (
	"github.com/licitaflow/stagegate/internal/domain"
)

// Set is a set of tool kinds.
type Set map[domain.ToolKind]bool

// NewSet builds a set from the given kinds.
func NewSet(kinds ...domain.ToolKind) Set {
	s := make(Set, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

// Has reports whether k is in the set.
func (s Set) Has(k domain.ToolKind) bool {
	return s[k]
}

// Resolver answers activation and ordering questions over a catalog.
type Resolver struct {
	Catalog *Catalog
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(c *Catalog) *Resolver {
	return &Resolver{Catalog: c}
}

// MetadataOf returns the metadata for a tool kind.
func (r *Resolver) MetadataOf(tool domain.ToolKind) (domain.ToolMetadata, error) {
	return r.Catalog.MetadataOf(tool)
}

// CanActivate reports whether tool may be activated given the currently
// active tools. Only the direct prerequisite is checked.
func (r *Resolver) CanActivate(tool domain.ToolKind, active Set) (bool, error) {
	meta, err := r.Catalog.MetadataOf(tool)
	if err != nil {
		return false, err
	}
	if meta.DependsOn == "" {
		return true, nil
	}
	return active.Has(meta.DependsOn), nil
}

// AvailableTools returns the full palette of tool kinds. The active set is
// accepted for call-site symmetry and does not filter the result.
func (r *Resolver) AvailableTools(active Set) []domain.ToolKind {
	_ = active
	out := make([]domain.ToolKind, len(domain.AllToolKinds))
	copy(out, domain.AllToolKinds)
	return out
}

// OrderedActive returns order restricted to active tools, keeping order's
// sequence. Active tools absent from order are not included.
func (r *Resolver) OrderedActive(active Set, order []domain.ToolKind) []domain.ToolKind {
	return filterOrder(active, order)
}

// NormalizeOrder sanitizes a persisted ordering against the currently valid
// tool set: entries outside tools are dropped, then members of tools the
// ordering does not mention are appended in canonical order.
func (r *Resolver) NormalizeOrder(tools Set, order []domain.ToolKind) []domain.ToolKind {
	out := filterOrder(tools, order)
	seen := NewSet(out...)
	for _, kind := range domain.AllToolKinds {
		if tools.Has(kind) && !seen.Has(kind) {
			out = append(out, kind)
		}
	}
	return out
}

func filterOrder(members Set, order []domain.ToolKind) []domain.ToolKind {
	out := make([]domain.ToolKind, 0, len(order))
	seen := make(Set, len(order))
	for _, kind := range order {
		if !members.Has(kind) || seen.Has(kind) {
			continue
		}
		seen[kind] = true
		out = append(out, kind)
	}
	return out
}
