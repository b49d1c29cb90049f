// Package ipc provides the HTTP API for the stage gating engine.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/licitaflow/stagegate/internal/access"
	"github.com/licitaflow/stagegate/internal/domain"
	"github.com/licitaflow/stagegate/internal/folders"
	"github.com/licitaflow/stagegate/internal/guard"
	"github.com/licitaflow/stagegate/internal/tools"
	"github.com/licitaflow/stagegate/internal/workflow"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Engine  *workflow.Engine
	Cache   *workflow.EvaluationCache
	Tools   *tools.Resolver
	Access  *access.Resolver
	Folders *folders.Service
	Guard   *guard.Guard
	Logger  *slog.Logger
	// StreamInterval is the polling period of the timeline stream.
	StreamInterval time.Duration
}

// CreateProcessRequest is the body for POST /api/v1/processes.
type CreateProcessRequest struct {
	Number string   `json:"numero"`
	Object string   `json:"objeto"`
	Unit   string   `json:"gerencia"`
	Stages []string `json:"etapas,omitempty"`
}

// AddStageRequest is the body for POST /api/v1/processes/{id}/stages.
type AddStageRequest struct {
	Name      string `json:"nomeEtapa"`
	StartDate string `json:"dataInicio,omitempty"`
	EndDate   string `json:"dataFim,omitempty"`
}

// UpdateFlagsRequest is the body for PUT .../stages/{n}/flags.
type UpdateFlagsRequest struct {
	Flags        domain.StageFlags `json:"flags"`
	StateVersion int64             `json:"stateVersion"`
}

// ReorderRequest is the body for PUT .../stages/order.
type ReorderRequest struct {
	Order []int `json:"order"`
}

// ResolveToolsRequest is the body for POST /api/v1/tools/resolve.
type ResolveToolsRequest struct {
	Active []domain.ToolKind `json:"active"`
	Order  []domain.ToolKind `json:"order"`
}

// ResolveToolsResponse answers which tools are available, which may be
// activated and in what order the active ones are shown.
type ResolveToolsResponse struct {
	Available       []domain.ToolKind        `json:"available"`
	CanActivate     map[domain.ToolKind]bool `json:"canActivate"`
	OrderedActive   []domain.ToolKind        `json:"orderedActive"`
	NormalizedOrder []domain.ToolKind        `json:"normalizedOrder"`
}

// FolderResponse is a folder with its live process count. Filterable is
// false when no predicate is registered for the folder id.
type FolderResponse struct {
	folders.Folder
	Filterable bool `json:"filterable"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateProcess handles POST /api/v1/processes.
func (h *Handler) CreateProcess(w http.ResponseWriter, r *http.Request) {
	var req CreateProcessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "numero is required"})
		return
	}

	p, err := h.Engine.CreateProcess(r.Context(), userFrom(r), workflow.NewProcess{
		Number: req.Number,
		Object: req.Object,
		Unit:   req.Unit,
		Stages: req.Stages,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListProcesses handles GET /api/v1/processes.
func (h *Handler) ListProcesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Engine.Processes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.Process{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetProcess handles GET /api/v1/processes/{id}.
func (h *Handler) GetProcess(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Process(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListStages handles GET /api/v1/processes/{id}/stages.
func (h *Handler) ListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.Engine.Stages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if stages == nil {
		stages = []domain.Stage{}
	}
	writeJSON(w, http.StatusOK, stages)
}

// AddStage handles POST /api/v1/processes/{id}/stages.
func (h *Handler) AddStage(w http.ResponseWriter, r *http.Request) {
	var req AddStageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "nomeEtapa is required"})
		return
	}
	s, err := h.Engine.AddStage(r.Context(), userFrom(r), r.PathValue("id"), workflow.NewStage{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ReorderStages handles PUT /api/v1/processes/{id}/stages/order.
func (h *Handler) ReorderStages(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stages, err := h.Engine.ReorderStages(r.Context(), userFrom(r), r.PathValue("id"), req.Order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

// GetPrecondition handles GET /api/v1/processes/{id}/stages/{n}/precondition.
func (h *Handler) GetPrecondition(w http.ResponseWriter, r *http.Request) {
	n, ok := stageNumber(w, r)
	if !ok {
		return
	}
	s, err := h.Engine.Stage(r.Context(), r.PathValue("id"), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Cache.Evaluate(*s))
}

// UpdateFlags handles PUT /api/v1/processes/{id}/stages/{n}/flags.
func (h *Handler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	n, ok := stageNumber(w, r)
	if !ok {
		return
	}
	var req UpdateFlagsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := h.Engine.UpdateFlags(r.Context(), userFrom(r), r.PathValue("id"), n, req.Flags, req.StateVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// CompleteStage handles POST /api/v1/processes/{id}/stages/{n}/complete.
func (h *Handler) CompleteStage(w http.ResponseWriter, r *http.Request) {
	n, ok := stageNumber(w, r)
	if !ok {
		return
	}
	s, err := h.Engine.CompleteStage(r.Context(), userFrom(r), r.PathValue("id"), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteStage handles DELETE /api/v1/processes/{id}/stages/{n}.
func (h *Handler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	n, ok := stageNumber(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteStage(r.Context(), userFrom(r), r.PathValue("id"), n); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProgress handles GET /api/v1/processes/{id}/stages/{n}/progress?today=.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	n, ok := stageNumber(w, r)
	if !ok {
		return
	}
	p, err := h.Engine.Progress(r.Context(), r.PathValue("id"), n, r.URL.Query().Get("today"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetTimeline handles GET /api/v1/processes/{id}/timeline?stage=N.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	stage := 0
	if s := r.URL.Query().Get("stage"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "stage must be a non-negative integer"})
			return
		}
		stage = parsed
	}
	groups, err := h.Engine.Timeline(r.Context(), r.PathValue("id"), stage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// AppendTimeline handles POST /api/v1/processes/{id}/timeline.
func (h *Handler) AppendTimeline(w http.ResponseWriter, r *http.Request) {
	var ev domain.TimelineEvent
	if !decodeBody(w, r, &ev) {
		return
	}
	if strings.TrimSpace(ev.Title) == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "title is required"})
		return
	}
	ev.ProcessID = r.PathValue("id")
	out, err := h.Engine.RecordEvent(r.Context(), userFrom(r), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// StreamTimeline handles GET /api/v1/processes/{id}/timeline/stream (SSE).
// Existing events are sent first, then new ones as they are appended.
func (h *Handler) StreamTimeline(w http.ResponseWriter, r *http.Request) {
	processID := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}
	if _, err := h.Engine.Process(r.Context(), processID); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	seen := make(map[string]bool)
	send := func() error {
		events, err := h.Engine.EventRepo.ListByProcess(ctx, h.Engine.DB, processID, 0)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		flusher.Flush()
		return nil
	}
	if err := send(); err != nil {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		flusher.Flush()
		return
	}

	interval := h.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				h.Logger.Warn("timeline stream stopped", "process_id", processID, "error", err)
				return
			}
		}
	}
}

// GetPermissions handles GET /api/v1/permissions.
func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Access.For(userFrom(r)).Capabilities())
}

// ListTools handles GET /api/v1/tools.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Tools.Catalog.All())
}

// ResolveTools handles POST /api/v1/tools/resolve.
func (h *Handler) ResolveTools(w http.ResponseWriter, r *http.Request) {
	var req ResolveToolsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for _, k := range append(append([]domain.ToolKind{}, req.Active...), req.Order...) {
		if !k.IsKnown() {
			writeError(w, domain.NewEngineError(domain.ErrUnknownTool.Code,
				fmt.Sprintf("%s: %q", domain.ErrUnknownTool.Message, k)))
			return
		}
	}

	active := tools.NewSet(req.Active...)
	resp := ResolveToolsResponse{
		Available:       h.Tools.AvailableTools(active),
		CanActivate:     make(map[domain.ToolKind]bool, len(domain.AllToolKinds)),
		OrderedActive:   h.Tools.OrderedActive(active, req.Order),
		NormalizedOrder: h.Tools.NormalizeOrder(active, req.Order),
	}
	for _, k := range resp.Available {
		ok, err := h.Tools.CanActivate(k, active)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.CanActivate[k] = ok
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFolders handles GET /api/v1/folders.
func (h *Handler) GetFolders(w http.ResponseWriter, r *http.Request) {
	views, err := h.Folders.Views(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	processes, err := h.Engine.Processes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]FolderResponse, 0, len(views))
	for _, v := range views {
		f := v.Folder
		f.ProcessCount = len(v.Filter(processes))
		out = append(out, FolderResponse{Folder: f, Filterable: v.Predicate != nil})
	}
	writeJSON(w, http.StatusOK, out)
}

// PutFolders handles PUT /api/v1/folders.
func (h *Handler) PutFolders(w http.ResponseWriter, r *http.Request) {
	var list []folders.Folder
	if !decodeBody(w, r, &list) {
		return
	}
	if err := h.Folders.Save(r.Context(), userFrom(r), list); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FolderProcesses handles GET /api/v1/folders/{id}/processes.
func (h *Handler) FolderProcesses(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	id := r.PathValue("id")
	view, ok, err := h.Folders.Find(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		// Built-in folders work even before the user saves any.
		view = folders.View{Folder: folders.Folder{ID: id}, Predicate: folders.DefaultRegistry(user).Lookup(id)}
		if view.Predicate == nil {
			writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: "folder not found"})
			return
		}
	}
	processes, err := h.Engine.Processes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Filter(processes))
}

// userFrom reads the caller from the X-User-Name and X-User-Unit headers.
// Values may be percent-encoded. A request without a unit has no user.
func userFrom(r *http.Request) *domain.User {
	unit := headerValue(r, "X-User-Unit")
	if unit == "" {
		return nil
	}
	return &domain.User{Name: headerValue(r, "X-User-Name"), Unit: unit}
}

// throttle applies the mutation rate limit, keyed by caller name and
// falling back to the unit and then the remote address.
func (h *Handler) throttle(next http.HandlerFunc) http.HandlerFunc {
	if h.Guard == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if u := userFrom(r); u != nil {
			key = u.Unit
			if u.Name != "" {
				key = u.Name
			}
		}
		if err := h.Guard.CheckRateLimit(key); err != nil {
			h.Logger.Warn("mutation throttled", "key", key, "path", r.URL.Path)
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

func headerValue(r *http.Request, key string) string {
	v := strings.TrimSpace(r.Header.Get(key))
	if decoded, err := url.QueryUnescape(v); err == nil {
		return decoded
	}
	return v
}

func stageNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "stage number must be a positive integer"})
		return 0, false
	}
	return n, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var engErr *domain.EngineError
	if errors.As(err, &engErr) {
		status := http.StatusInternalServerError
		switch engErr.Code {
		case domain.ErrProcessNotFound.Code, domain.ErrStageNotFound.Code:
			status = http.StatusNotFound
		case domain.ErrDuplicateProcess.Code, domain.ErrDuplicateStage.Code,
			domain.ErrOptimisticLock.Code, domain.ErrStageAlreadyDone.Code:
			status = http.StatusConflict
		case domain.ErrPermissionDenied.Code:
			status = http.StatusForbidden
		case domain.ErrRateLimitExceeded.Code:
			status = http.StatusTooManyRequests
		case domain.ErrPreconditionFailed.Code, domain.ErrInvalidTransition.Code, domain.ErrInvalidStageOrder.Code:
			status = http.StatusUnprocessableEntity
		case domain.ErrUnknownTool.Code, domain.ErrInvalidDateInput.Code:
			status = http.StatusBadRequest
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}
