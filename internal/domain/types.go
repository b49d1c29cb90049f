// Package domain defines the shared types of the procurement stage workflow.
package domain

import "time"

// StageStatus is the lifecycle status of a workflow stage.
type StageStatus string

const (
	StagePending    StageStatus = "pendente"
	StageInProgress StageStatus = "em_andamento"
	StageCompleted  StageStatus = "concluida"
)

// StageKind identifies a stage by its position in the standard procurement flow.
type StageKind int

const (
	StageDraftElaboration StageKind = 1
	StageDraftApproval    StageKind = 2
	StageDraftSignature   StageKind = 3
	StageDispatch         StageKind = 4
	StageTermsOfReference StageKind = 5
)

// DocumentReadyForSignature is the document status required to close the
// terms-of-reference stage.
const DocumentReadyForSignature = "Finalizado para Assinatura"

// Stage is a read-only snapshot of one workflow stage and its completion flags.
// Flags that do not apply to a stage's kind are left at their zero value.
type Stage struct {
	ProcessID string      `json:"processId,omitempty"`
	Number    int         `json:"numeroEtapa"`
	Name      string      `json:"nomeEtapa"`
	Status    StageStatus `json:"status"`
	Position  int         `json:"posicao"`
	StartDate string      `json:"dataInicio,omitempty"`
	EndDate   string      `json:"dataFim,omitempty"`

	StageFlags

	StateVersion int64 `json:"stateVersion,omitempty"`
}

// StageFlags carries the stage-specific completion flags.
type StageFlags struct {
	VersionSubmitted  bool   `json:"versaoEnviada,omitempty"`
	DecisionRecorded  bool   `json:"decisaoRegistrada,omitempty"`
	SignaturesDone    int    `json:"assinaturasConcluidas,omitempty"`
	SignaturesTotal   int    `json:"totalAssinaturas,omitempty"`
	DispatchGenerated bool   `json:"despachoGerado,omitempty"`
	DispatchSigned    bool   `json:"despachoAssinado,omitempty"`
	DocumentAttached  bool   `json:"documentoAnexado,omitempty"`
	DocumentStatus    string `json:"statusDocumento,omitempty"`
}

// Kind returns the stage kind derived from the stage number.
func (s Stage) Kind() StageKind {
	return StageKind(s.Number)
}

// Precondition is the outcome of evaluating whether a stage may be completed.
type Precondition struct {
	Satisfied bool   `json:"satisfied"`
	Message   string `json:"message"`
}

// ProcessStatus is the overall status of a procurement process.
type ProcessStatus string

const (
	ProcessOpen      ProcessStatus = "em_andamento"
	ProcessCompleted ProcessStatus = "concluido"
)

// Process is the summary row of a procurement process.
type Process struct {
	ID           string        `json:"id"`
	Number       string        `json:"numero"`
	Object       string        `json:"objeto"`
	Unit         string        `json:"gerencia"`
	Status       ProcessStatus `json:"status"`
	CurrentStage int           `json:"etapaAtual"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// User is the authenticated user as seen by the rule engine.
type User struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// ToolKind identifies an optional panel attachable to a stage view.
type ToolKind string

const (
	ToolManagement   ToolKind = "management"
	ToolMainForm     ToolKind = "main_form"
	ToolStagePanel   ToolKind = "stage_panel"
	ToolStageActions ToolKind = "stage_actions"
	ToolComments     ToolKind = "comments"
	ToolSignatures   ToolKind = "signatures"
	ToolDocView      ToolKind = "doc_view"
)

// AllToolKinds is the closed set of tool kinds in canonical order.
var AllToolKinds = []ToolKind{
	ToolManagement,
	ToolMainForm,
	ToolStagePanel,
	ToolStageActions,
	ToolComments,
	ToolSignatures,
	ToolDocView,
}

// IsKnown reports whether k belongs to the closed set of tool kinds.
func (k ToolKind) IsKnown() bool {
	for _, known := range AllToolKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ToolMetadata is the static description of a tool kind.
type ToolMetadata struct {
	Kind        ToolKind `json:"kind" yaml:"kind"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description" yaml:"description"`
	Icon        string   `json:"icon,omitempty" yaml:"icon"`
	Color       string   `json:"color,omitempty" yaml:"color"`
	DependsOn   ToolKind `json:"dependsOn,omitempty" yaml:"depends_on"`
}

// EventStatus is the visual status of a timeline event.
type EventStatus string

const (
	EventCompleted  EventStatus = "concluido"
	EventPending    EventStatus = "pendente"
	EventInProgress EventStatus = "em_andamento"
	EventRejected   EventStatus = "rejeitado"
	EventInfo       EventStatus = "info"
)

// Author identifies who produced a timeline event.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Attachment describes a file attached to a timeline event.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// TimelineEvent is an immutable audit-trail entry.
type TimelineEvent struct {
	ID          string       `json:"id"`
	ProcessID   string       `json:"processId,omitempty"`
	StageNumber int          `json:"numeroEtapa,omitempty"`
	Status      EventStatus  `json:"status"`
	Title       string       `json:"title"`
	Author      Author       `json:"author"`
	CreatedAt   time.Time    `json:"createdAt"`
	Description string       `json:"description,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// DateGroup is a calendar day of timeline events, newest first.
type DateGroup struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Items []TimelineEvent `json:"items"`
}

// StageSnapshot captures a stage at a completion boundary.
type StageSnapshot struct {
	ID           int64
	ProcessID    string
	StageNumber  int
	SnapshotJSON string
	Checksum     string
	CreatedAt    int64
}

// AuditRecord logs permission and compliance events.
type AuditRecord struct {
	ID           string
	ProcessID    string
	Category     string
	Actor        string
	Action       string
	RequestJSON  string
	DecisionJSON string
	Severity     string
	CreatedAt    int64
}
