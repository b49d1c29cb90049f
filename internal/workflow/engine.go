package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/licitaflow/stagegate/internal/access"
	"github.com/licitaflow/stagegate/internal/deadline"
	"github.com/licitaflow/stagegate/internal/domain"
	"github.com/licitaflow/stagegate/internal/store"
	"github.com/licitaflow/stagegate/internal/timeline"
)

// StandardStages are the stage names of a new procurement process, by number.
var StandardStages = []string{
	"Elaboração da Minuta",
	"Aprovação da Minuta",
	"Assinatura da Minuta",
	"Despacho",
	"Termo de Referência",
}

// NewProcess is the input for CreateProcess.
type NewProcess struct {
	Number string
	Object string
	Unit   string
	// Stages overrides StandardStages when not empty.
	Stages []string
}

// NewStage is the input for AddStage.
type NewStage struct {
	Name      string
	StartDate string
	EndDate   string
}

// Engine applies gated, permission-checked mutations to persisted stages.
type Engine struct {
	DB           *sql.DB
	ProcessRepo  *store.ProcessRepo
	StageRepo    *store.StageRepo
	SnapshotRepo *store.SnapshotRepo
	EventRepo    *store.EventRepo
	AuditRepo    *store.AuditRepo
	Evaluator    *PreconditionEvaluator
	Access       *access.Resolver
	Calendar     *deadline.Calculator
	Aggregator   *timeline.Aggregator
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewEngine creates an engine with the standard precondition rules.
func NewEngine(db *sql.DB, acc *access.Resolver, cal *deadline.Calculator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		DB:           db,
		ProcessRepo:  &store.ProcessRepo{},
		StageRepo:    &store.StageRepo{},
		SnapshotRepo: &store.SnapshotRepo{},
		EventRepo:    &store.EventRepo{},
		AuditRepo:    &store.AuditRepo{},
		Evaluator:    NewPreconditionEvaluator(),
		Access:       acc,
		Calendar:     cal,
		Aggregator:   timeline.NewAggregator(cal.Location),
		Logger:       logger,
		Now:          time.Now,
	}
}

// CreateProcess creates a process with its stages. The first stage starts
// in progress; the rest are pending.
func (e *Engine) CreateProcess(ctx context.Context, user *domain.User, in NewProcess) (*domain.Process, error) {
	if !e.Access.For(user).CanEditFlow() {
		return nil, e.deny(ctx, user, "", "create_process", in)
	}

	names := in.Stages
	if len(names) == 0 {
		names = StandardStages
	}

	now := e.Now()
	p := domain.Process{
		ID:           uuid.NewString(),
		Number:       in.Number,
		Object:       in.Object,
		Unit:         in.Unit,
		Status:       domain.ProcessOpen,
		CurrentStage: 1,
		CreatedAt:    now.UTC().Truncate(time.Second),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.ProcessRepo.CreateTx(ctx, tx, p); err != nil {
		return nil, err
	}
	for i, name := range names {
		s := domain.Stage{
			ProcessID: p.ID,
			Number:    i + 1,
			Name:      name,
			Status:    domain.StagePending,
			Position:  i + 1,
		}
		if i == 0 {
			s.Status = domain.StageInProgress
			s.StartDate = e.today()
		}
		if err := e.StageRepo.CreateTx(ctx, tx, s, now.Unix()); err != nil {
			return nil, fmt.Errorf("create stage %d: %w", s.Number, err)
		}
	}

	ev := e.newEvent(user, p.ID, 0, domain.EventInfo, "Processo criado")
	ev.Description = p.Object
	if err := e.EventRepo.Append(ctx, tx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	e.Logger.Info("process created", "process_id", p.ID, "stages", len(names))
	return &p, nil
}

// Process returns one process.
func (e *Engine) Process(ctx context.Context, id string) (*domain.Process, error) {
	return e.ProcessRepo.GetByID(ctx, e.DB, id)
}

// Processes returns all processes, newest first.
func (e *Engine) Processes(ctx context.Context) ([]domain.Process, error) {
	return e.ProcessRepo.List(ctx, e.DB)
}

// Stages returns the stages of a process in display order.
func (e *Engine) Stages(ctx context.Context, processID string) ([]domain.Stage, error) {
	if _, err := e.ProcessRepo.GetByID(ctx, e.DB, processID); err != nil {
		return nil, err
	}
	return e.StageRepo.ListByProcess(ctx, e.DB, processID)
}

// Stage returns one stage of a process.
func (e *Engine) Stage(ctx context.Context, processID string, number int) (*domain.Stage, error) {
	return e.StageRepo.Get(ctx, e.DB, processID, number)
}

// Precondition evaluates the completion precondition of a stored stage.
func (e *Engine) Precondition(ctx context.Context, processID string, number int) (domain.Precondition, error) {
	s, err := e.Stage(ctx, processID, number)
	if err != nil {
		return domain.Precondition{}, err
	}
	return e.Evaluator.Evaluate(*s), nil
}

// Progress computes the business-day progress of a stage. An empty today
// uses the current date in the calendar's location.
func (e *Engine) Progress(ctx context.Context, processID string, number int, today string) (deadline.Progress, error) {
	s, err := e.Stage(ctx, processID, number)
	if err != nil {
		return deadline.Progress{}, err
	}
	if today == "" {
		today = e.today()
	}
	return e.Calendar.CalculateStrings(s.StartDate, s.EndDate, today)
}

// UpdateFlags replaces the completion flags of a stage that is not yet
// completed. expectedVersion must match the stored state version.
func (e *Engine) UpdateFlags(ctx context.Context, user *domain.User, processID string, number int, flags domain.StageFlags, expectedVersion int64) (*domain.Stage, error) {
	if !e.Access.For(user).CanEditProcess() {
		return nil, e.deny(ctx, user, processID, "update_flags", flags)
	}

	s, err := e.Stage(ctx, processID, number)
	if err != nil {
		return nil, err
	}
	if s.Status == domain.StageCompleted {
		return nil, domain.ErrStageAlreadyDone
	}
	if expectedVersion != 0 {
		s.StateVersion = expectedVersion
	}
	s.StageFlags = flags

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.StageRepo.UpdateTx(ctx, tx, *s, e.Now().Unix()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.StateVersion++
	return s, nil
}

// CompleteStage marks an in-progress stage as completed once its
// precondition holds. In the same transaction it snapshots the stage,
// appends a timeline event, starts the next pending stage and updates the
// process summary.
func (e *Engine) CompleteStage(ctx context.Context, user *domain.User, processID string, number int) (*domain.Stage, error) {
	if !e.Access.For(user).CanEditProcess() {
		return nil, e.deny(ctx, user, processID, "complete_stage", map[string]int{"numeroEtapa": number})
	}

	s, err := e.Stage(ctx, processID, number)
	if err != nil {
		return nil, err
	}
	if s.Status == domain.StageCompleted {
		return nil, domain.ErrStageAlreadyDone
	}
	pre := e.Evaluator.Evaluate(*s)
	if !pre.Satisfied {
		return nil, domain.NewEngineError(domain.ErrPreconditionFailed.Code, pre.Message)
	}

	now := e.Now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	done := *s
	done.Status = domain.StageCompleted
	if done.EndDate == "" {
		done.EndDate = e.today()
	}
	if err := e.StageRepo.UpdateTx(ctx, tx, done, now.Unix()); err != nil {
		return nil, err
	}
	done.StateVersion++

	snap, err := snapshotOf(done, now)
	if err != nil {
		return nil, err
	}
	if err := e.SnapshotRepo.SaveTx(ctx, tx, snap); err != nil {
		return nil, err
	}

	ev := e.newEvent(user, processID, number, domain.EventCompleted, "Etapa concluída: "+done.Name)
	if err := e.EventRepo.Append(ctx, tx, ev); err != nil {
		return nil, err
	}

	stages, err := e.StageRepo.ListByProcess(ctx, tx, processID)
	if err != nil {
		return nil, err
	}
	next := firstPending(stages)
	if next == nil {
		if err := e.ProcessRepo.UpdateProgressTx(ctx, tx, processID, number, domain.ProcessCompleted); err != nil {
			return nil, err
		}
	} else {
		next.Status = domain.StageInProgress
		if next.StartDate == "" {
			next.StartDate = e.today()
		}
		if err := e.StageRepo.UpdateTx(ctx, tx, *next, now.Unix()); err != nil {
			return nil, err
		}
		if err := e.ProcessRepo.UpdateProgressTx(ctx, tx, processID, next.Number, domain.ProcessOpen); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	e.Logger.Info("stage completed", "process_id", processID, "numero_etapa", number)
	return &done, nil
}

// AddStage appends a pending stage after the last one.
func (e *Engine) AddStage(ctx context.Context, user *domain.User, processID string, in NewStage) (*domain.Stage, error) {
	if !e.Access.For(user).CanAddStage() {
		return nil, e.deny(ctx, user, processID, "add_stage", in)
	}
	for _, d := range []string{in.StartDate, in.EndDate} {
		if d == "" {
			continue
		}
		if _, err := e.Calendar.ParseDate(d); err != nil {
			return nil, err
		}
	}

	stages, err := e.Stages(ctx, processID)
	if err != nil {
		return nil, err
	}
	s := domain.Stage{
		ProcessID: processID,
		Name:      in.Name,
		Status:    domain.StagePending,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	for _, existing := range stages {
		s.Number = max(s.Number, existing.Number)
		s.Position = max(s.Position, existing.Position)
	}
	s.Number++
	s.Position++

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.StageRepo.CreateTx(ctx, tx, s, e.Now().Unix()); err != nil {
		return nil, err
	}
	ev := e.newEvent(user, processID, s.Number, domain.EventInfo, "Etapa adicionada: "+s.Name)
	if err := e.EventRepo.Append(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.StateVersion = 1
	return &s, nil
}

// DeleteStage removes a pending stage.
func (e *Engine) DeleteStage(ctx context.Context, user *domain.User, processID string, number int) error {
	s, err := e.Stage(ctx, processID, number)
	if err != nil {
		return err
	}
	if !e.Access.For(user).CanDeleteStage(s.Status) {
		return e.deny(ctx, user, processID, "delete_stage", map[string]any{"numeroEtapa": number, "status": s.Status})
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.StageRepo.DeleteTx(ctx, tx, processID, number); err != nil {
		return err
	}
	ev := e.newEvent(user, processID, number, domain.EventInfo, "Etapa removida: "+s.Name)
	if err := e.EventRepo.Append(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

// ReorderStages sets the display order of a process's stages. order must
// list every stage number of the process exactly once.
func (e *Engine) ReorderStages(ctx context.Context, user *domain.User, processID string, order []int) ([]domain.Stage, error) {
	if !e.Access.For(user).CanReorderStages() {
		return nil, e.deny(ctx, user, processID, "reorder_stages", order)
	}

	stages, err := e.Stages(ctx, processID)
	if err != nil {
		return nil, err
	}
	if !isPermutation(stages, order) {
		return nil, domain.NewEngineError(domain.ErrInvalidStageOrder.Code,
			fmt.Sprintf("%s: got %v", domain.ErrInvalidStageOrder.Message, order))
	}

	now := e.Now().Unix()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, number := range order {
		if err := e.StageRepo.SetPositionTx(ctx, tx, processID, number, i+1, now); err != nil {
			return nil, err
		}
	}
	reordered, err := e.StageRepo.ListByProcess(ctx, tx, processID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return reordered, nil
}

// RecordEvent appends a user-authored event to a process timeline. Any
// identified user may comment; the author is always the caller.
func (e *Engine) RecordEvent(ctx context.Context, user *domain.User, ev domain.TimelineEvent) (*domain.TimelineEvent, error) {
	if user == nil || user.Name == "" {
		return nil, e.deny(ctx, user, ev.ProcessID, "record_event", ev.Title)
	}
	if _, err := e.ProcessRepo.GetByID(ctx, e.DB, ev.ProcessID); err != nil {
		return nil, err
	}

	out := e.newEvent(user, ev.ProcessID, ev.StageNumber, ev.Status, ev.Title)
	if out.Status == "" {
		out.Status = domain.EventInfo
	}
	out.Description = ev.Description
	out.Attachments = ev.Attachments
	if err := e.EventRepo.Append(ctx, e.DB, out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Timeline returns the events of a process grouped by calendar day. A
// stageNumber of zero includes every stage.
func (e *Engine) Timeline(ctx context.Context, processID string, stageNumber int) ([]domain.DateGroup, error) {
	if _, err := e.ProcessRepo.GetByID(ctx, e.DB, processID); err != nil {
		return nil, err
	}
	events, err := e.EventRepo.ListByProcess(ctx, e.DB, processID, stageNumber)
	if err != nil {
		return nil, err
	}
	return e.Aggregator.GroupByDay(events), nil
}

// deny records a permission denial in the audit log and returns
// ErrPermissionDenied. Audit failures are logged, not returned.
func (e *Engine) deny(ctx context.Context, user *domain.User, processID, action string, request any) error {
	actor := ""
	if user != nil {
		actor = user.Name + " (" + user.Unit + ")"
	}
	reqJSON, _ := json.Marshal(request)
	rec := domain.AuditRecord{
		ID:           uuid.NewString(),
		ProcessID:    processID,
		Category:     "permission",
		Actor:        actor,
		Action:       action,
		RequestJSON:  string(reqJSON),
		DecisionJSON: `{"allowed":false}`,
		Severity:     "warn",
		CreatedAt:    e.Now().Unix(),
	}
	if err := e.AuditRepo.Record(ctx, e.DB, rec); err != nil {
		e.Logger.Error("audit write failed", "action", action, "error", err)
	}
	e.Logger.Warn("permission denied",
		"action", action,
		"process_id", processID,
		"actor", actor,
		"error_code", domain.ErrPermissionDenied.Code,
	)
	return domain.ErrPermissionDenied
}

func (e *Engine) newEvent(user *domain.User, processID string, stage int, status domain.EventStatus, title string) domain.TimelineEvent {
	ev := domain.TimelineEvent{
		ID:          uuid.NewString(),
		ProcessID:   processID,
		StageNumber: stage,
		Status:      status,
		Title:       title,
		CreatedAt:   e.Now().UTC(),
	}
	if user != nil {
		ev.Author.Name = user.Name
	}
	return ev
}

func (e *Engine) today() string {
	return e.Calendar.Today(e.Now()).Format("2006-01-02")
}

func snapshotOf(s domain.Stage, at time.Time) (domain.StageSnapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return domain.StageSnapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return domain.StageSnapshot{
		ProcessID:    s.ProcessID,
		StageNumber:  s.Number,
		SnapshotJSON: string(data),
		Checksum:     strconv.FormatUint(xxhash.Sum64(data), 16),
		CreatedAt:    at.Unix(),
	}, nil
}

func firstPending(stages []domain.Stage) *domain.Stage {
	for i := range stages {
		if stages[i].Status == domain.StagePending {
			return &stages[i]
		}
	}
	return nil
}

func isPermutation(stages []domain.Stage, order []int) bool {
	if len(stages) != len(order) {
		return false
	}
	want := make(map[int]bool, len(stages))
	for _, s := range stages {
		want[s.Number] = true
	}
	for _, n := range order {
		if !want[n] {
			return false
		}
		delete(want, n)
	}
	return len(want) == 0
}
