package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"iconforge/internal/bulk"
	"iconforge/internal/infra"
	"iconforge/internal/providers/image"
	"iconforge/internal/providers/svggen"
)

// App is the controller: it owns the session (one combinations file plus its
// settings document), at most one worker, and the event fan-out to clients.
type App struct {
	cfg      *infra.Config
	logger   zerolog.Logger
	backends *image.Registry
	svg      *svggen.Generator
	hub      *hub

	mu       sync.Mutex
	session  *session
	worker   *bulk.Worker
	progress *bulk.Progress
}

// session binds the loaded combinations file to its settings document and the
// comparison against the previously saved line snapshot.
type session struct {
	CombinationsFile string
	Combinations     []string
	NewLines         []string
	MissingLines     []string
	Doc              *bulk.Document
}

// NewApp wires the controller. svg may be nil when no chat backend is
// configured; the SVG endpoint then answers 503.
func NewApp(cfg *infra.Config, logger zerolog.Logger, backends *image.Registry, svg *svggen.Generator) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		backends: backends,
		svg:      svg,
		hub:      newHub(logger),
	}
}

// Health reports liveness and the models the registry can serve.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"models": a.backends.Models(),
	})
}

// PersistProgress implements bulk.ProgressSink: the worker hands over the
// progress map after every combination and the controller writes it into the
// settings document.
func (a *App) PersistProgress(snapshot map[string]bulk.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	a.session.Doc.Progress = snapshot
	return a.session.Doc.Save()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
