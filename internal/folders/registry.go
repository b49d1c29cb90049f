package folders

import (
	"github.com/licitaflow/stagegate/internal/domain"
)

// Well-known folder ids with built-in predicates.
const (
	FolderAll       = "todos"
	FolderOpen      = "em_andamento"
	FolderCompleted = "concluidos"
	FolderMyUnit    = "minha_gerencia"
)

// Registry maps folder ids to predicates.
type Registry map[string]Predicate

// Lookup returns the predicate for a folder id, or nil.
func (r Registry) Lookup(id string) Predicate {
	if r == nil {
		return nil
	}
	return r[id]
}

// DefaultRegistry returns the built-in predicates. The unit-scoped folder
// is only registered when a user is given.
func DefaultRegistry(user *domain.User) Registry {
	reg := Registry{
		FolderAll: func(domain.Process) bool { return true },
		FolderOpen: func(p domain.Process) bool {
			return p.Status == domain.ProcessOpen
		},
		FolderCompleted: func(p domain.Process) bool {
			return p.Status == domain.ProcessCompleted
		},
	}
	if user != nil && user.Unit != "" {
		unit := user.Unit
		reg[FolderMyUnit] = func(p domain.Process) bool { return p.Unit == unit }
	}
	return reg
}
