package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) getIndex(w http.ResponseWriter, r *http.Request) {
	ix, err := h.index.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ix)
}

func (h *Handler) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	ix, err := h.index.Rebuild(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ix)
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalog.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) rebuildCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalog.Rebuild(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) allLineage(w http.ResponseWriter, r *http.Request) {
	all, err := h.lineage.ResolveAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lineage": all,
		"count":   len(all),
	})
}

func (h *Handler) assetLineage(w http.ResponseWriter, r *http.Request) {
	lin, err := h.lineage.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lin)
}
