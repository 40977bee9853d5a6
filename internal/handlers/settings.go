package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scandock/scandock/internal/config"
)

func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, _, _, _ := h.current()
		h.writeJSON(w, settings)
	case http.MethodPut:
		var settings config.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		// The upstream token never travels over the API; keep whatever is
		// already configured.
		current, _, _, _ := h.current()
		settings.Upstream.Token = current.Upstream.Token
		if err := config.Save(h.settingsPath, settings); err != nil {
			h.writeError(w, "Invalid settings: "+err.Error(), http.StatusBadRequest)
			return
		}

		h.mu.Lock()
		h.apply(settings)
		h.mu.Unlock()

		h.writeJSON(w, settings)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
