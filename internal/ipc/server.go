package ipc

import (
	"context"
	"net/http"
)

// Server wraps an HTTP server with stage-engine routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: Routes(h),
	}
	return &Server{httpServer: srv}
}

// Routes returns the API handler with CORS applied. Mutating routes go
// through the handler's rate limit when a Guard is set.
func Routes(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Processes.
	mux.HandleFunc("POST /api/v1/processes", h.throttle(h.CreateProcess))
	mux.HandleFunc("GET /api/v1/processes", h.ListProcesses)
	mux.HandleFunc("GET /api/v1/processes/{id}", h.GetProcess)

	// Stages.
	mux.HandleFunc("GET /api/v1/processes/{id}/stages", h.ListStages)
	mux.HandleFunc("POST /api/v1/processes/{id}/stages", h.throttle(h.AddStage))
	mux.HandleFunc("PUT /api/v1/processes/{id}/stages/order", h.throttle(h.ReorderStages))
	mux.HandleFunc("DELETE /api/v1/processes/{id}/stages/{n}", h.throttle(h.DeleteStage))
	mux.HandleFunc("GET /api/v1/processes/{id}/stages/{n}/precondition", h.GetPrecondition)
	mux.HandleFunc("PUT /api/v1/processes/{id}/stages/{n}/flags", h.throttle(h.UpdateFlags))
	mux.HandleFunc("POST /api/v1/processes/{id}/stages/{n}/complete", h.throttle(h.CompleteStage))
	mux.HandleFunc("GET /api/v1/processes/{id}/stages/{n}/progress", h.GetProgress)

	// Timeline.
	mux.HandleFunc("GET /api/v1/processes/{id}/timeline", h.GetTimeline)
	mux.HandleFunc("POST /api/v1/processes/{id}/timeline", h.throttle(h.AppendTimeline))
	mux.HandleFunc("GET /api/v1/processes/{id}/timeline/stream", h.StreamTimeline)

	mux.HandleFunc("GET /api/v1/permissions", h.GetPermissions)

	mux.HandleFunc("GET /api/v1/tools", h.ListTools)
	mux.HandleFunc("POST /api/v1/tools/resolve", h.ResolveTools)

	// Folders.
	mux.HandleFunc("GET /api/v1/folders", h.GetFolders)
	mux.HandleFunc("PUT /api/v1/folders", h.throttle(h.PutFolders))
	mux.HandleFunc("GET /api/v1/folders/{id}/processes", h.FolderProcesses)

	return corsMiddleware(mux)
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for the browser front end.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Name, X-User-Unit")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
