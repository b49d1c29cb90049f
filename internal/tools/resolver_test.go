package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaflow/stagegate/internal/domain"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	return NewResolver(c)
}

func TestDefaultCatalog_SingleDependencyEdge(t *testing.T) {
	r := newTestResolver(t)

	edges := 0
	for _, meta := range r.Catalog.All() {
		assert.NotEmpty(t, meta.Label, "tool %s", meta.Kind)
		if meta.DependsOn != "" {
			edges++
			assert.Equal(t, domain.ToolDocView, meta.Kind)
			assert.Equal(t, domain.ToolSignatures, meta.DependsOn)
		}
	}
	assert.Equal(t, 1, edges)
}

func TestMetadataOf_UnknownTool(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.MetadataOf(domain.ToolKind("spreadsheet"))
	require.ErrorIs(t, err, domain.ErrUnknownTool)

	meta, err := r.MetadataOf(domain.ToolComments)
	require.NoError(t, err)
	assert.Equal(t, "Comentários", meta.Label)
}

func TestCanActivate(t *testing.T) {
	r := newTestResolver(t)

	ok, err := r.CanActivate(domain.ToolDocView, NewSet(domain.ToolSignatures))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CanActivate(domain.ToolDocView, NewSet())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.CanActivate(domain.ToolComments, NewSet())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.CanActivate(domain.ToolKind("bogus"), NewSet())
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
}

func TestCanActivate_NonTransitive(t *testing.T) {
	entries := []domain.ToolMetadata{}
	for _, kind := range domain.AllToolKinds {
		entries = append(entries, domain.ToolMetadata{Kind: kind, Label: string(kind)})
	}
	// comments -> signatures -> doc_view: a chain deeper than the default table.
	for i := range entries {
		switch entries[i].Kind {
		case domain.ToolComments:
			entries[i].DependsOn = domain.ToolSignatures
		case domain.ToolSignatures:
			entries[i].DependsOn = domain.ToolDocView
		}
	}
	c, err := NewCatalog(entries)
	require.NoError(t, err)
	r := NewResolver(c)

	ok, err := r.CanActivate(domain.ToolComments, NewSet(domain.ToolSignatures))
	require.NoError(t, err)
	assert.True(t, ok, "only the direct prerequisite is required")
}

func TestAvailableTools_IgnoresActiveSet(t *testing.T) {
	r := newTestResolver(t)

	all := r.AvailableTools(NewSet())
	withActive := r.AvailableTools(NewSet(domain.ToolManagement, domain.ToolComments))
	assert.Equal(t, domain.AllToolKinds, all)
	assert.Equal(t, all, withActive)

	all[0] = "mutated"
	assert.Equal(t, domain.ToolManagement, domain.AllToolKinds[0])
}

func TestOrderedActive(t *testing.T) {
	r := newTestResolver(t)

	got := r.OrderedActive(
		NewSet(domain.ToolManagement, domain.ToolSignatures),
		[]domain.ToolKind{domain.ToolDocView, domain.ToolManagement, domain.ToolSignatures},
	)
	assert.Equal(t, []domain.ToolKind{domain.ToolManagement, domain.ToolSignatures}, got)

	got = r.OrderedActive(
		NewSet(domain.ToolManagement, domain.ToolComments),
		[]domain.ToolKind{domain.ToolManagement},
	)
	assert.Equal(t, []domain.ToolKind{domain.ToolManagement}, got, "active tools missing from order are dropped")
}

func TestNormalizeOrder(t *testing.T) {
	r := newTestResolver(t)

	got := r.NormalizeOrder(
		NewSet(domain.ToolManagement, domain.ToolComments, domain.ToolSignatures),
		[]domain.ToolKind{domain.ToolSignatures, domain.ToolDocView, domain.ToolManagement, domain.ToolSignatures},
	)
	assert.Equal(t, []domain.ToolKind{
		domain.ToolSignatures,
		domain.ToolManagement,
		domain.ToolComments,
	}, got)

	assert.Empty(t, r.NormalizeOrder(NewSet(), []domain.ToolKind{domain.ToolComments}))
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown kind", "tools:\n  - kind: spreadsheet\n    label: x\n"},
		{"missing kinds", "tools:\n  - kind: management\n    label: x\n"},
		{"unknown field", "tools:\n  - kind: management\n    lable: x\n"},
		{"not yaml", "tools: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidToolCatalog)
		})
	}
}

func TestNewCatalog_DanglingDependency(t *testing.T) {
	entries := []domain.ToolMetadata{}
	for _, kind := range domain.AllToolKinds {
		meta := domain.ToolMetadata{Kind: kind, Label: string(kind)}
		if kind == domain.ToolDocView {
			meta.DependsOn = "ghost"
		}
		entries = append(entries, meta)
	}
	_, err := NewCatalog(entries)
	assert.ErrorIs(t, err, domain.ErrInvalidToolCatalog)
}

func TestLoadCatalog_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, defaultCatalogYAML, 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.All(), len(domain.AllToolKinds))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
