package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bi-atlas/internal/domain"
)

// listAssets returns the indexed entries for one asset type.
func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	t, err := assetTypeParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ix, err := h.index.Get(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	entries := ix.Assets[t]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":   t,
		"assets": entries,
		"count":  len(entries),
	})
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
	t, err := assetTypeParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	asset, err := h.repo.Get(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// fieldSummary is one parsed field of a single asset.
type fieldSummary struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType,omitempty"`
	IsCalculated bool   `json:"isCalculated"`
	Expression   string `json:"expression,omitempty"`
}

// assetFields returns the parsed field summary of one asset: output columns
// and calculated fields for datasets, visual and calculated fields for
// analyses and dashboards.
func (h *Handler) assetFields(w http.ResponseWriter, r *http.Request) {
	t, err := assetTypeParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	asset, err := h.repo.Get(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	fields := summarizeFields(asset)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assetId": asset.ID,
		"type":    asset.Type,
		"fields":  fields,
		"count":   len(fields),
	})
}

func summarizeFields(asset *domain.Asset) []fieldSummary {
	var out []fieldSummary
	appendCalculated := func(list []domain.CalculatedField) {
		for _, cf := range list {
			out = append(out, fieldSummary{
				Name:         cf.Name,
				DataType:     cf.DataType,
				IsCalculated: true,
				Expression:   cf.Expression,
			})
		}
	}

	switch asset.Type {
	case domain.AssetTypeDataset:
		if asset.Dataset == nil {
			break
		}
		for _, col := range asset.Dataset.OutputColumns {
			out = append(out, fieldSummary{Name: col.Name, DataType: col.DataType})
		}
		appendCalculated(asset.Dataset.CalculatedFields)
	case domain.AssetTypeAnalysis:
		if asset.Analysis == nil {
			break
		}
		for _, fr := range asset.Analysis.VisualFields {
			out = append(out, fieldSummary{Name: fr.FieldName})
		}
		appendCalculated(asset.Analysis.CalculatedFields)
	case domain.AssetTypeDashboard:
		if asset.Dashboard == nil {
			break
		}
		for _, fr := range asset.Dashboard.VisualFields {
			out = append(out, fieldSummary{Name: fr.FieldName})
		}
		appendCalculated(asset.Dashboard.CalculatedFields)
	}
	return out
}

// --- field metadata ---

func (h *Handler) listFieldMetadata(w http.ResponseWriter, r *http.Request) {
	list, err := h.meta.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fieldMetadata": list,
		"count":         len(list),
	})
}

func (h *Handler) getFieldMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta.Get(r.Context(), chi.URLParam(r, "datasetID"), chi.URLParam(r, "fieldName"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) upsertFieldMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description    string   `json:"description"`
		Classification string   `json:"classification"`
		Tags           []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	meta, err := h.meta.Upsert(r.Context(), &domain.FieldMetadata{
		DatasetID:      chi.URLParam(r, "datasetID"),
		FieldName:      chi.URLParam(r, "fieldName"),
		Description:    req.Description,
		Classification: req.Classification,
		Tags:           req.Tags,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) deleteFieldMetadata(w http.ResponseWriter, r *http.Request) {
	if err := h.meta.Delete(r.Context(), chi.URLParam(r, "datasetID"), chi.URLParam(r, "fieldName")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
