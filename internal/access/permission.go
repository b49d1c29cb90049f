// Package access resolves workflow edit rights from a user's organizational unit.
package access

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/licitaflow/stagegate/internal/domain"
)

// Policy lists the organizational units with workflow-editing rights.
type Policy struct {
	AllowedUnits []string
}

// Resolver maps users to permissions under a fixed policy.
type Resolver struct {
	allowed map[string]bool
}

// NewResolver creates a Resolver for the given policy. Unit names are
// compared after trimming and Unicode NFC normalization, so the same name
// coming from the directory in decomposed form still matches.
func NewResolver(p Policy) *Resolver {
	allowed := make(map[string]bool, len(p.AllowedUnits))
	for _, unit := range p.AllowedUnits {
		if key := normalizeUnit(unit); key != "" {
			allowed[key] = true
		}
	}
	return &Resolver{allowed: allowed}
}

// For returns the permissions of a user. A nil user has no permissions.
func (r *Resolver) For(user *domain.User) Permissions {
	if user == nil {
		return Permissions{}
	}
	return Permissions{elevated: r.allowed[normalizeUnit(user.Unit)]}
}

// IsAllowedUnit reports whether a unit is on the allow-list.
func (r *Resolver) IsAllowedUnit(unit string) bool {
	return r.allowed[normalizeUnit(unit)]
}

func normalizeUnit(unit string) string {
	return norm.NFC.String(strings.TrimSpace(unit))
}

// Permissions are the workflow edit rights of one user. The zero value
// grants nothing.
type Permissions struct {
	elevated bool
}

// CanEditFlow reports whether the user may edit the workflow structure.
func (p Permissions) CanEditFlow() bool {
	return p.elevated
}

// CanEditProcess reports whether the user may edit process data. It follows
// the same rule as CanEditFlow today but is a separate capability.
func (p Permissions) CanEditProcess() bool {
	return p.elevated
}

// CanDeleteStage reports whether a stage with the given status may be deleted.
// Only pending stages can be removed.
func (p Permissions) CanDeleteStage(status domain.StageStatus) bool {
	return p.CanEditFlow() && status == domain.StagePending
}

// CanReorderStages reports whether the user may reorder stages.
func (p Permissions) CanReorderStages() bool {
	return p.CanEditFlow()
}

// CanAddStage reports whether the user may add stages.
func (p Permissions) CanAddStage() bool {
	return p.CanEditFlow()
}

// Capabilities is a serializable snapshot of a user's permissions.
type Capabilities struct {
	EditFlow           bool `json:"canEditFlow"`
	EditProcess        bool `json:"canEditProcess"`
	ReorderStages      bool `json:"canReorderStages"`
	AddStage           bool `json:"canAddStage"`
	DeletePendingStage bool `json:"canDeletePendingStage"`
}

// Capabilities returns the snapshot of all permissions.
func (p Permissions) Capabilities() Capabilities {
	return Capabilities{
		EditFlow:           p.CanEditFlow(),
		EditProcess:        p.CanEditProcess(),
		ReorderStages:      p.CanReorderStages(),
		AddStage:           p.CanAddStage(),
		DeletePendingStage: p.CanDeleteStage(domain.StagePending),
	}
}
