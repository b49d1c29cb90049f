// Package workflow implements stage gating for the procurement workflow and
// the engine that applies gated mutations to persisted stages.
package workflow

import (
	"sync"

	"github.com/licitaflow/stagegate/internal/domain"
)

const (
	msgNotInProgress = "stage not in progress"
	msgReady         = "stage ready for completion"
)

// Rule is the completion precondition for one stage kind.
type Rule struct {
	Name    string
	Check   func(stage domain.Stage) bool
	Message string
}

// PreconditionEvaluator decides whether a stage may be marked complete.
// Rules are looked up by stage kind; kinds without a rule are always ready.
type PreconditionEvaluator struct {
	mu    sync.RWMutex
	rules map[domain.StageKind]Rule
	// generation changes on every Register.
	generation uint64
}

// NewPreconditionEvaluator creates an evaluator with the standard
// procurement rules for stages 1 through 5.
func NewPreconditionEvaluator() *PreconditionEvaluator {
	return &PreconditionEvaluator{rules: defaultRules()}
}

func defaultRules() map[domain.StageKind]Rule {
	return map[domain.StageKind]Rule{
		domain.StageDraftElaboration: {
			Name:    "draft_elaboration",
			Check:   func(s domain.Stage) bool { return s.VersionSubmitted },
			Message: "submit a version for review before completing",
		},
		domain.StageDraftApproval: {
			Name:    "draft_approval",
			Check:   func(s domain.Stage) bool { return s.DecisionRecorded },
			Message: "record the decision (approve/request correction)",
		},
		domain.StageDraftSignature: {
			Name: "draft_signature",
			// A zero total means the signature list was never initialized.
			Check: func(s domain.Stage) bool {
				return s.SignaturesTotal > 0 && s.SignaturesDone == s.SignaturesTotal
			},
			Message: "wait for all signatures",
		},
		domain.StageDispatch: {
			Name:    "dispatch",
			Check:   func(s domain.Stage) bool { return s.DispatchGenerated && s.DispatchSigned },
			Message: "generate and sign the dispatch",
		},
		domain.StageTermsOfReference: {
			Name: "terms_of_reference",
			Check: func(s domain.Stage) bool {
				return s.DocumentAttached && s.DocumentStatus == domain.DocumentReadyForSignature
			},
			Message: "submit the document for signature",
		},
	}
}

// Register sets the rule for a stage kind, replacing any existing one.
func (e *PreconditionEvaluator) Register(kind domain.StageKind, rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[kind] = rule
	e.generation++
}

// Generation identifies the current rule set.
func (e *PreconditionEvaluator) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// Rule returns the rule registered for a stage kind.
func (e *PreconditionEvaluator) Rule(kind domain.StageKind) (Rule, error) {
	e.mu.RLock()
	r, ok := e.rules[kind]
	e.mu.RUnlock()
	if !ok {
		return Rule{}, domain.ErrRuleNotRegistered
	}
	return r, nil
}

// Evaluate checks the completion precondition of a stage snapshot.
func (e *PreconditionEvaluator) Evaluate(stage domain.Stage) domain.Precondition {
	if stage.Status != domain.StageInProgress {
		return domain.Precondition{Satisfied: false, Message: msgNotInProgress}
	}

	e.mu.RLock()
	rule, ok := e.rules[stage.Kind()]
	e.mu.RUnlock()
	if !ok || rule.Check == nil {
		return domain.Precondition{Satisfied: true, Message: msgReady}
	}
	if !rule.Check(stage) {
		return domain.Precondition{Satisfied: false, Message: rule.Message}
	}
	return domain.Precondition{Satisfied: true, Message: msgReady}
}
