package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/licitaflow/stagegate/internal/domain"
)

var testPolicy = Policy{AllowedUnits: []string{
	"Gerência de Planejamento e Contratações",
	"Gerência de Licitações",
	"Gerência de Contratos",
	"Gerência de Administração",
}}

func TestFor_AllowedUnit(t *testing.T) {
	r := NewResolver(testPolicy)
	p := r.For(&domain.User{Name: "Ana", Unit: "Gerência de Licitações"})

	assert.True(t, p.CanEditFlow())
	assert.True(t, p.CanEditProcess())
	assert.True(t, p.CanReorderStages())
	assert.True(t, p.CanAddStage())
	assert.True(t, p.CanDeleteStage(domain.StagePending))
	assert.False(t, p.CanDeleteStage(domain.StageInProgress))
	assert.False(t, p.CanDeleteStage(domain.StageCompleted))
}

func TestFor_OtherUnit(t *testing.T) {
	r := NewResolver(testPolicy)
	p := r.For(&domain.User{Name: "Bruno", Unit: "Gerência de Obras"})

	assert.False(t, p.CanEditFlow())
	assert.False(t, p.CanEditProcess())
	assert.False(t, p.CanReorderStages())
	assert.False(t, p.CanAddStage())
	assert.False(t, p.CanDeleteStage(domain.StagePending))
}

func TestFor_NilUserHasNothing(t *testing.T) {
	r := NewResolver(testPolicy)
	assert.Equal(t, Capabilities{}, r.For(nil).Capabilities())
}

func TestFor_EmptyUnitNeverMatches(t *testing.T) {
	r := NewResolver(Policy{AllowedUnits: []string{"", "  "}})
	assert.False(t, r.For(&domain.User{Unit: ""}).CanEditFlow())
}

func TestFor_NormalizesUnitNames(t *testing.T) {
	r := NewResolver(testPolicy)

	// "e" followed by a combining circumflex, as some directories emit it.
	decomposed := "Gere\u0302ncia de Contratos"
	assert.True(t, r.For(&domain.User{Unit: decomposed}).CanEditFlow())
	assert.True(t, r.For(&domain.User{Unit: "  Gerência de Contratos "}).CanEditFlow())
	assert.False(t, r.For(&domain.User{Unit: "gerência de contratos"}).CanEditFlow(), "case is significant")
}

func TestCapabilities_Snapshot(t *testing.T) {
	r := NewResolver(testPolicy)
	caps := r.For(&domain.User{Unit: "Gerência de Administração"}).Capabilities()
	assert.Equal(t, Capabilities{
		EditFlow:           true,
		EditProcess:        true,
		ReorderStages:      true,
		AddStage:           true,
		DeletePendingStage: true,
	}, caps)
}

func TestIsAllowedUnit(t *testing.T) {
	r := NewResolver(testPolicy)
	assert.True(t, r.IsAllowedUnit("Gerência de Planejamento e Contratações"))
	assert.False(t, r.IsAllowedUnit("Diretoria Geral"))
}
