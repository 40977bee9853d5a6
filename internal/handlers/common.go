package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/scandock/scandock/internal/combine"
	"github.com/scandock/scandock/internal/config"
	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/logging"
	"github.com/scandock/scandock/internal/paperless"
	"github.com/scandock/scandock/internal/scan"
	"github.com/scandock/scandock/internal/scanner"
	"github.com/scandock/scandock/internal/session"
)

// Handler wires the scan pipeline behind the HTTP API.
type Handler struct {
	settingsPath string
	logs         *logging.Broadcaster
	registry     *scanner.Registry
	runner       execrun.Runner

	mu       sync.Mutex // guards settings and the components derived from them
	settings config.Settings
	executor *scan.Executor
	sessions *session.Store
	combiner *combine.Combiner

	// scanMu serializes scan and combine operations on the output directory;
	// two concurrent captures would race over the same temp-file namespace.
	scanMu sync.Mutex
}

// New loads settings from settingsPath and builds the pipeline around them.
func New(settingsPath string, logs *logging.Broadcaster) (*Handler, error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}

	runner := execrun.OS{}
	h := &Handler{
		settingsPath: settingsPath,
		logs:         logs,
		registry:     scanner.NewRegistry(runner),
		runner:       runner,
	}
	h.apply(settings)
	return h, nil
}

// apply swaps in settings and rebuilds the components that depend on them.
// Callers other than New must hold h.mu.
func (h *Handler) apply(settings config.Settings) {
	h.settings = settings
	h.executor = scan.New(h.registry, h.runner, settings.OutputDir)
	h.sessions = session.NewStore(settings.OutputDir)
	h.combiner = combine.New(h.runner, settings.OutputDir)
}

func (h *Handler) current() (config.Settings, *scan.Executor, *session.Store, *combine.Combiner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings, h.executor, h.sessions, h.combiner
}

func (h *Handler) upstream() *paperless.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return paperless.NewClient(h.settings.Upstream.URL, h.settings.Upstream.Token)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}
