package domain

import "time"

// FieldSource records one asset contributing a field to the catalog.
type FieldSource struct {
	AssetType             AssetType `json:"assetType"`
	AssetID               string    `json:"assetId"`
	AssetName             string    `json:"assetName,omitempty"`
	DatasetID             string    `json:"datasetId,omitempty"`
	DatasetName           string    `json:"datasetName,omitempty"`
	DatasourceType        string    `json:"datasourceType,omitempty"`
	ImportMode            string    `json:"importMode,omitempty"`
	LastModified          time.Time `json:"lastModified,omitempty"`
	UsedInVisuals         bool      `json:"usedInVisuals,omitempty"`
	UsedInCalculatedField bool      `json:"usedInCalculatedFields,omitempty"`
}

// ExpressionVariant is one distinct formula text sharing a calculated-field
// name across different owning assets.
type ExpressionVariant struct {
	Expression string        `json:"expression"`
	Sources    []FieldSource `json:"sources"`
}

// FieldLineage summarizes where a catalog field comes from and where it is
// consumed.
type FieldLineage struct {
	DatasetID      string   `json:"datasetId,omitempty"`
	DatasetName    string   `json:"datasetName,omitempty"`
	DatasourceType string   `json:"datasourceType,omitempty"`
	AnalysisIDs    []string `json:"analysisIds,omitempty"`
	DashboardIDs   []string `json:"dashboardIds,omitempty"`
}

// FieldMetadata is operator-supplied documentation for a field, kept in the
// field-metadata store and attached to catalog entries best-effort.
type FieldMetadata struct {
	DatasetID      string    `json:"datasetId"`
	FieldName      string    `json:"fieldName"`
	Description    string    `json:"description,omitempty"`
	Classification string    `json:"classification,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CatalogField is one merged, name-deduplicated field in the data catalog.
// Within one build a field name maps to exactly one CatalogField.
type CatalogField struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	DataType     string              `json:"dataType,omitempty"`
	IsCalculated bool                `json:"isCalculated"`
	Expression   string              `json:"expression,omitempty"`
	HasVariants  bool                `json:"hasVariants,omitempty"`
	Variants     []ExpressionVariant `json:"variants,omitempty"`
	Sources      []FieldSource       `json:"sources"`
	Lineage      *FieldLineage       `json:"lineage,omitempty"`
	UsageCount   int                 `json:"usageCount"`
	Metadata     *FieldMetadata      `json:"metadata,omitempty"`
}

// DataCatalog is the cached catalog document persisted at
// catalog/data-catalog.json.
type DataCatalog struct {
	GeneratedAt      time.Time      `json:"generatedAt"`
	Fields           []CatalogField `json:"fields"`
	CalculatedFields []CatalogField `json:"calculatedFields"`
	TotalFields      int            `json:"totalFields"`
	TotalCalculated  int            `json:"totalCalculated"`
	TotalDatasets    int            `json:"totalDatasets"`
}
