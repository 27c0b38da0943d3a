package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bi-atlas/internal/domain"
)

// runExportAll kicks off a full export of all four asset types in the
// background and returns the new session id immediately.
func (h *Handler) runExportAll(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("forceRefresh") == "true"

	id, err := h.orch.ExportAllAsync(r.Context(), force)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"sessionId": id,
		"status":    "started",
	})
}

// runExportType runs one asset type's export against the current session in
// the background. The session must already exist.
func (h *Handler) runExportType(w http.ResponseWriter, r *http.Request) {
	t, err := assetTypeParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	force := r.URL.Query().Get("forceRefresh") == "true"

	sess := h.orch.CurrentSession()
	if sess == nil || sess.IsTerminal() {
		h.writeError(w, domain.ErrConflict("no active export session"))
		return
	}

	go func() {
		if err := h.orch.ExportAssetType(context.Background(), t, force); err != nil {
			h.logger.Error("asset type export failed", "session", sess.ID, "type", t, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"sessionId": sess.ID,
		"type":      t,
		"status":    "started",
	})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Types []string `json:"types"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, domain.ErrValidation("invalid request body: %v", err))
			return
		}
	}

	types := make([]domain.AssetType, 0, len(req.Types))
	for _, s := range req.Types {
		t, err := domain.ParseAssetType(s)
		if err != nil {
			h.writeError(w, err)
			return
		}
		types = append(types, t)
	}

	id, err := h.orch.StartSession(r.Context(), types)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"sessionId": id})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.orch.ListSessions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	sess := h.orch.CurrentSession()
	if sess == nil {
		h.writeError(w, domain.ErrNotFound("no active export session"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.orch.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) cancelSession(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.CancelSession(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cancelled"})
}
