package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/scandock/scandock/internal/models"
	"github.com/scandock/scandock/internal/scan"
	"github.com/scandock/scandock/internal/scanner"
	"github.com/scandock/scandock/internal/session"
)

// HandleScan runs one capture and registers the resulting pages into the
// requested session.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		SessionID string `json:"session_id"`
		Duplex    *bool  `json:"duplex,omitempty"`
		Device    string `json:"device,omitempty"`
		Source    string `json:"source,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if request.SessionID == "" {
		request.SessionID = session.DefaultID
	}

	settings, executor, sessions, _ := h.current()

	sessionDir, err := sessions.Dir(request.SessionID)
	if err != nil {
		h.writeError(w, "Invalid session: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := scan.Options{
		Device:     settings.Device,
		OutputDir:  sessionDir,
		Format:     settings.Format,
		Resolution: settings.Resolution,
		Source:     settings.Source,
		Width:      settings.PageWidth,
		Height:     settings.PageHeight,
		SkipBlank:  settings.SkipBlank,
		Duplex:     settings.Duplex,
	}
	if request.Device != "" {
		opts.Device = request.Device
	}
	if request.Source != "" {
		opts.Source = request.Source
	}
	if request.Duplex != nil {
		opts.Duplex = *request.Duplex
	}

	h.scanMu.Lock()
	result, err := executor.Run(r.Context(), opts)
	h.scanMu.Unlock()
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrNoScanners) || errors.Is(err, scan.ErrDeviceUnavailable) {
			code = http.StatusServiceUnavailable
		}
		h.writeError(w, "Scan failed: "+err.Error(), code)
		return
	}

	pages := make([]models.Page, 0, len(result.Files))
	for _, file := range result.Files {
		page, err := sessions.AddPage(request.SessionID, file)
		if err != nil {
			slog.Warn("Captured file could not be registered", "file", file, "err", err)
			continue
		}
		pages = append(pages, page)
	}

	h.writeJSON(w, map[string]any{
		"session_id": request.SessionID,
		"device":     result.Device,
		"pages":      pages,
	})
}
