package domain

import "fmt"

// EngineError is the unified error type for the stage engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Is matches any EngineError carrying the same code, so errors built with
// NewEngineError or WrapEngineError still match their sentinel.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Stage / workflow errors (-32010 to -32039) ----

var (
	ErrInvalidTransition  = &EngineError{Code: -32010, Message: "invalid stage transition"}
	ErrPreconditionFailed = &EngineError{Code: -32011, Message: "stage precondition not satisfied"}
	ErrStageNotFound      = &EngineError{Code: -32012, Message: "stage not found"}
	ErrStageAlreadyDone   = &EngineError{Code: -32013, Message: "stage already completed"}
	ErrOptimisticLock     = &EngineError{Code: -32015, Message: "optimistic lock conflict: state was modified concurrently"}
	ErrDuplicateStage     = &EngineError{Code: -32016, Message: "stage already exists"}
	ErrRuleNotRegistered  = &EngineError{Code: -32017, Message: "no precondition rule registered for stage kind"}
	ErrInvalidStageOrder  = &EngineError{Code: -32018, Message: "stage order does not match process stages"}
	ErrProcessNotFound    = &EngineError{Code: -32020, Message: "process not found"}
	ErrDuplicateProcess   = &EngineError{Code: -32021, Message: "process already exists"}
)

// ---- Permission errors (-32100 to -32129) ----

var (
	ErrPermissionDenied  = &EngineError{Code: -32100, Message: "permission denied"}
	ErrRateLimitExceeded = &EngineError{Code: -32101, Message: "rate limit exceeded"}
)

// ---- Store / config errors (-32130 to -32159) ----

var (
	ErrStoreInit     = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery    = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite    = &EngineError{Code: -32132, Message: "store write failed"}
	ErrConfigInvalid = &EngineError{Code: -32136, Message: "invalid configuration"}
)

// ---- Rule input errors (-32200 to -32229) ----

var (
	ErrUnknownTool             = &EngineError{Code: -32200, Message: "unknown tool kind"}
	ErrInvalidDateInput        = &EngineError{Code: -32201, Message: "invalid date input"}
	ErrMalformedPersistedState = &EngineError{Code: -32202, Message: "malformed persisted state"}
	ErrInvalidToolCatalog      = &EngineError{Code: -32203, Message: "invalid tool catalog"}
)
