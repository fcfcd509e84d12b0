package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"ageme/internal/ageparams"
	"ageme/internal/debug"
	"ageme/internal/infra"
	"ageme/internal/upstream"
)

// Error codes form a closed taxonomy; each maps to exactly one HTTP status
// except UPSTREAM_ERROR, which preserves upstream's own status.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeConfigError   = "CONFIG_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUpstreamError = "UPSTREAM_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// Editor is the upstream surface the handlers depend on.
type Editor interface {
	Edit(ctx context.Context, req upstream.EditRequest) (*upstream.EditResult, error)
	Probe(ctx context.Context) upstream.ProbeResult
	HasCredentials() bool
	Model() string
	Endpoint() string
	SendsQuality() bool
}

// App is the handler container. It holds no per-request state; every request
// is an independent unit of work.
type App struct {
	Config       *infra.Config
	Logger       infra.Logger
	Editor       Editor
	promptPolicy ageparams.PromptPolicy
}

// NewApp wires the handler container.
func NewApp(cfg *infra.Config, logger infra.Logger, editor Editor) (*App, error) {
	policy, err := ageparams.ParsePromptPolicy(cfg.PromptPolicy)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Logger: logger, Editor: editor, promptPolicy: policy}, nil
}

// json writes the response body, merging the debug echo when the request
// opted in. The debug member never changes the status.
func (a *App) json(w http.ResponseWriter, r *http.Request, code int, body map[string]any) {
	if rec := debug.FromContext(r.Context()); rec.Enabled() {
		body["debug"] = rec.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	a.json(w, r, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func availableRoutes() []map[string]string {
	return []map[string]string{
		{"method": "GET", "path": "/api/capabilities"},
		{"method": "POST", "path": "/api/age-face"},
	}
}

// NotFound answers unrecognized methods and paths with the closed-taxonomy
// envelope plus the route list, so a misconfigured client can self-correct.
func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.json(w, r, http.StatusNotFound, map[string]any{
		"error":            map[string]string{"code": CodeNotFound, "message": "Route not found"},
		"available_routes": availableRoutes(),
	})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, r, http.StatusOK, map[string]any{"status": "ok"})
}
