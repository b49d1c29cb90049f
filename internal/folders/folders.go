// Package folders handles the organizational folders users keep for
// filtering processes. The persisted form is plain data; filters are
// re-attached at runtime from a registry keyed by folder id.
package folders

import (
	"encoding/json"
	"log/slog"

	"github.com/licitaflow/stagegate/internal/domain"
)

// Folder is the persisted shape of an organizational folder.
type Folder struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	IconRef           string `json:"iconRef"`
	Color             string `json:"color"`
	ProcessCount      int    `json:"processCount"`
	LastAccessedLabel string `json:"lastAccessedLabel"`
}

// Predicate selects the processes that belong to a folder.
type Predicate func(p domain.Process) bool

// View is a folder enriched with its runtime predicate. Predicate is nil
// when the registry has no entry for the folder id.
type View struct {
	Folder
	Predicate Predicate `json:"-"`
}

// Filter returns the processes matched by the folder predicate. A folder
// without a predicate matches nothing.
func (v View) Filter(processes []domain.Process) []domain.Process {
	out := []domain.Process{}
	if v.Predicate == nil {
		return out
	}
	for _, p := range processes {
		if v.Predicate(p) {
			out = append(out, p)
		}
	}
	return out
}

// Decode parses the persisted folder list. Malformed input is logged and
// yields an empty list; it is never returned as an error.
func Decode(raw []byte, logger *slog.Logger) []Folder {
	if len(raw) == 0 {
		return []Folder{}
	}
	var out []Folder
	if err := json.Unmarshal(raw, &out); err != nil {
		if logger != nil {
			logger.Warn("discarding persisted folders",
				"error_code", domain.ErrMalformedPersistedState.Code,
				"error", err,
				"bytes", len(raw),
			)
		}
		return []Folder{}
	}
	if out == nil {
		out = []Folder{}
	}
	return out
}

// Encode serializes folders in their persisted shape.
func Encode(folders []Folder) ([]byte, error) {
	if folders == nil {
		folders = []Folder{}
	}
	return json.Marshal(folders)
}

// Hydrate re-attaches predicates to decoded folders.
func Hydrate(folders []Folder, reg Registry) []View {
	views := make([]View, 0, len(folders))
	for _, f := range folders {
		views = append(views, View{Folder: f, Predicate: reg.Lookup(f.ID)})
	}
	return views
}
