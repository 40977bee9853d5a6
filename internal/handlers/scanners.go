package handlers

import (
	"errors"
	"net/http"

	"github.com/scandock/scandock/internal/scanner"
)

func (h *Handler) HandleScanners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := h.registry.Detect(r.Context())
	if err != nil {
		if errors.Is(err, scanner.ErrNoScanners) {
			h.writeJSON(w, map[string]any{
				"devices": []any{},
				"error":   "No scanners detected. Check the connection and try the fix endpoint.",
			})
			return
		}
		h.writeError(w, "Scanner detection failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{"devices": devices})
}

func (h *Handler) HandleDiagnose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.registry.Diagnose(r.Context()))
}

func (h *Handler) HandleFix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.registry.AttemptFix(r.Context()))
}
