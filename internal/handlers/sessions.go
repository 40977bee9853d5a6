package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/scandock/scandock/internal/combine"
	"github.com/scandock/scandock/internal/session"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, _, sessions, _ := h.current()
	list, err := sessions.List()
	if err != nil {
		h.writeError(w, "Failed to list sessions: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, list)
}

// HandleSessionDetail routes /api/sessions/{id}[/...] requests.
// sessionStatus maps store errors to response codes: a caller mistake is a
// 400 or 404, anything else is a server failure.
func sessionStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidSessionID), errors.Is(err, session.ErrUnknownPageID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrPageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(rest, "/", 3)
	sessionID := parts[0]
	if sessionID == "" {
		h.writeError(w, "Session id required", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		h.sessionRoot(w, r, sessionID)
		return
	}

	switch parts[1] {
	case "pages":
		h.sessionPages(w, r, sessionID, parts)
	case "clear":
		h.sessionClear(w, r, sessionID)
	case "combine":
		h.sessionCombine(w, r, sessionID)
	case "upload":
		h.sessionUpload(w, r, sessionID)
	default:
		h.writeError(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handler) sessionRoot(w http.ResponseWriter, r *http.Request, sessionID string) {
	_, _, sessions, _ := h.current()

	switch r.Method {
	case http.MethodGet:
		sess, err := sessions.Get(sessionID)
		if err != nil {
			h.writeError(w, "Failed to load session: "+err.Error(), sessionStatus(err))
			return
		}
		h.writeJSON(w, sess)
	case http.MethodPut:
		var request struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := sessions.Rename(sessionID, request.Name); err != nil {
			h.writeError(w, "Rename failed: "+err.Error(), sessionStatus(err))
			return
		}
		sess, err := sessions.Get(sessionID)
		if err != nil {
			h.writeError(w, "Failed to load session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, sess)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) sessionPages(w http.ResponseWriter, r *http.Request, sessionID string, parts []string) {
	_, _, sessions, _ := h.current()

	// POST /api/sessions/{id}/pages/reorder
	if len(parts) == 3 && parts[2] == "reorder" {
		if r.Method != http.MethodPost {
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var request struct {
			Order []string `json:"order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := sessions.Reorder(sessionID, request.Order); err != nil {
			h.writeError(w, "Reorder failed: "+err.Error(), sessionStatus(err))
			return
		}
		sess, err := sessions.Get(sessionID)
		if err != nil {
			h.writeError(w, "Failed to load session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, sess)
		return
	}

	// DELETE /api/sessions/{id}/pages/{pageID}
	if len(parts) == 3 && r.Method == http.MethodDelete {
		if err := sessions.RemovePage(sessionID, parts[2]); err != nil {
			h.writeError(w, "Remove failed: "+err.Error(), sessionStatus(err))
			return
		}
		sess, err := sessions.Get(sessionID)
		if err != nil {
			h.writeError(w, "Failed to load session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, sess)
		return
	}

	h.writeError(w, "Not found", http.StatusNotFound)
}

func (h *Handler) sessionClear(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, _, sessions, _ := h.current()
	deleted, err := sessions.Clear(sessionID)
	if err != nil {
		h.writeError(w, "Clear failed: "+err.Error(), sessionStatus(err))
		return
	}
	h.writeJSON(w, map[string]any{"session_id": sessionID, "deleted": deleted})
}

func (h *Handler) sessionCombine(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	settings, _, sessions, combiner := h.current()
	sess, err := sessions.Get(sessionID)
	if err != nil {
		h.writeError(w, "Failed to load session: "+err.Error(), sessionStatus(err))
		return
	}

	h.scanMu.Lock()
	out, err := combiner.Combine(r.Context(), sess, settings.Format)
	h.scanMu.Unlock()
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, combine.ErrNoPages) {
			code = http.StatusBadRequest
		}
		h.writeError(w, "Combine failed: "+err.Error(), code)
		return
	}

	h.writeJSON(w, map[string]any{"session_id": sessionID, "output": out, "pages": len(sess.Pages)})
}

// sessionUpload combines the session, pushes the result upstream, and on
// success clears the pages and removes the combined artifact.
func (h *Handler) sessionUpload(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Title string `json:"title"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	settings, _, sessions, combiner := h.current()
	sess, err := sessions.Get(sessionID)
	if err != nil {
		h.writeError(w, "Failed to load session: "+err.Error(), sessionStatus(err))
		return
	}

	h.scanMu.Lock()
	out, err := combiner.Combine(r.Context(), sess, settings.Format)
	h.scanMu.Unlock()
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, combine.ErrNoPages) {
			code = http.StatusBadRequest
		}
		h.writeError(w, "Combine failed: "+err.Error(), code)
		return
	}

	if err := h.upstream().Upload(r.Context(), out, request.Title); err != nil {
		h.writeError(w, "Upload failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	deleted, err := sessions.Clear(sessionID)
	if err != nil {
		h.writeError(w, "Uploaded but failed to clear session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		h.writeError(w, "Uploaded but failed to remove combined file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{
		"session_id": sessionID,
		"uploaded":   true,
		"deleted":    deleted,
	})
}
