// Package api provides the HTTP handlers for the BI asset catalog admin API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/catalog"
	"bi-atlas/internal/domain"
	"bi-atlas/internal/export"
	"bi-atlas/internal/lineage"
)

// Handler bundles the service dependencies behind the admin API routes.
type Handler struct {
	orch      *export.Orchestrator
	index     *catalog.IndexBuilder
	catalog   *catalog.Builder
	lineage   *lineage.Resolver
	repo      *assets.Repository
	meta      domain.FieldMetadataRepository
	logger    *slog.Logger
	startTime time.Time
}

// NewHandler creates a Handler with all required service dependencies.
func NewHandler(
	orch *export.Orchestrator,
	index *catalog.IndexBuilder,
	cat *catalog.Builder,
	lin *lineage.Resolver,
	repo *assets.Repository,
	meta domain.FieldMetadataRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		orch:      orch,
		index:     index,
		catalog:   cat,
		lineage:   lin,
		repo:      repo,
		meta:      meta,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}
}

// Routes registers every admin API route on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/export", func(r chi.Router) {
		r.Post("/run", h.runExportAll)
		r.Post("/run/{type}", h.runExportType)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.startSession)
			r.Get("/", h.listSessions)
			r.Get("/current", h.currentSession)
			r.Post("/current/cancel", h.cancelSession)
			r.Get("/{id}", h.getSession)
		})
	})

	r.Route("/index", func(r chi.Router) {
		r.Get("/", h.getIndex)
		r.Post("/rebuild", h.rebuildIndex)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", h.getCatalog)
		r.Post("/rebuild", h.rebuildCatalog)
	})

	r.Route("/lineage", func(r chi.Router) {
		r.Get("/", h.allLineage)
		r.Get("/{id}", h.assetLineage)
	})

	r.Route("/assets", func(r chi.Router) {
		r.Get("/{type}", h.listAssets)
		r.Get("/{type}/{id}", h.getAsset)
		r.Get("/{type}/{id}/fields", h.assetFields)
	})

	r.Route("/field-metadata", func(r chi.Router) {
		r.Get("/", h.listFieldMetadata)
		r.Get("/{datasetID}/{fieldName}", h.getFieldMetadata)
		r.Put("/{datasetID}/{fieldName}", h.upsertFieldMetadata)
		r.Delete("/{datasetID}/{fieldName}", h.deleteFieldMetadata)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": err.Error(),
	})
}

// assetTypeParam parses the {type} URL parameter.
func assetTypeParam(r *http.Request) (domain.AssetType, error) {
	return domain.ParseAssetType(chi.URLParam(r, "type"))
}
