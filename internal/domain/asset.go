package domain

import "time"

// AssetType identifies one of the four BI asset variants.
type AssetType string

const (
	AssetTypeDashboard  AssetType = "dashboard"
	AssetTypeAnalysis   AssetType = "analysis"
	AssetTypeDataset    AssetType = "dataset"
	AssetTypeDatasource AssetType = "datasource"
)

// AllAssetTypes lists every asset type in export order.
var AllAssetTypes = []AssetType{
	AssetTypeDashboard,
	AssetTypeAnalysis,
	AssetTypeDataset,
	AssetTypeDatasource,
}

// ParseAssetType validates and converts a string into an AssetType.
func ParseAssetType(s string) (AssetType, error) {
	switch AssetType(s) {
	case AssetTypeDashboard, AssetTypeAnalysis, AssetTypeDataset, AssetTypeDatasource:
		return AssetType(s), nil
	}
	return "", ErrValidation("unknown asset type %q", s)
}

// Import mode constants for datasets.
const (
	ImportModeMemory      = "MEMORY"
	ImportModeDirectQuery = "DIRECT_QUERY"
)

// Physical table kinds inside a dataset definition.
const (
	TableKindObjectStorage = "object_storage"
	TableKindRelational    = "relational"
	TableKindCustomSQL     = "custom_sql"
)

// Tag is one key/value pair attached to an asset.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Permission is one permission grant on an asset.
type Permission struct {
	Principal     string   `json:"principal"`
	PrincipalType string   `json:"principalType"` // "user", "group"
	Actions       []string `json:"actions"`
}

// Asset is one exported BI asset with its parsed definition and enrichment.
// Persisted as a single JSON blob at assets/{type}/{id}.json.
type Asset struct {
	ID           string       `json:"id"`
	ARN          string       `json:"arn,omitempty"`
	Name         string       `json:"name"`
	Type         AssetType    `json:"type"`
	Tags         []Tag        `json:"tags,omitempty"`
	Permissions  []Permission `json:"permissions,omitempty"`
	SizeBytes    int64        `json:"sizeBytes,omitempty"`
	LastModified time.Time    `json:"lastModified"`
	LastExported time.Time    `json:"lastExported"`

	// Exactly one of the following is set, matching Type.
	Dashboard  *DashboardDefinition  `json:"dashboard,omitempty"`
	Analysis   *AnalysisDefinition   `json:"analysis,omitempty"`
	Dataset    *DatasetDefinition    `json:"dataset,omitempty"`
	Datasource *DatasourceDefinition `json:"datasource,omitempty"`
}

// DatasetRef is one dataset reference inside a dashboard or analysis
// definition. Older assets carry only the ARN; newer ones declare an
// identifier alias alongside it.
type DatasetRef struct {
	Identifier string `json:"identifier,omitempty"` // local alias used by field references
	DatasetID  string `json:"datasetId,omitempty"`
	ARN        string `json:"arn,omitempty"`
}

// CalculatedField is a named expression defined in a dataset, analysis, or
// dashboard definition.
type CalculatedField struct {
	Name              string `json:"name"`
	DatasetIdentifier string `json:"datasetIdentifier,omitempty"`
	Expression        string `json:"expression"`
	DataType          string `json:"dataType,omitempty"`
}

// FieldRef is one field placed on a visual.
type FieldRef struct {
	FieldName         string `json:"fieldName"`
	DatasetIdentifier string `json:"datasetIdentifier,omitempty"`
}

// DashboardDefinition is the parsed definition payload of a dashboard.
type DashboardDefinition struct {
	SourceAnalysisARN string            `json:"sourceAnalysisArn,omitempty"`
	DatasetRefs       []DatasetRef      `json:"datasetRefs,omitempty"`
	CalculatedFields  []CalculatedField `json:"calculatedFields,omitempty"`
	VisualFields      []FieldRef        `json:"visualFields,omitempty"`
	PublishedVersion  int64             `json:"publishedVersion,omitempty"`
}

// AnalysisDefinition is the parsed definition payload of an analysis.
type AnalysisDefinition struct {
	DatasetRefs      []DatasetRef      `json:"datasetRefs,omitempty"`
	CalculatedFields []CalculatedField `json:"calculatedFields,omitempty"`
	VisualFields     []FieldRef        `json:"visualFields,omitempty"`
}

// Column is one output or physical column of a dataset.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"dataType,omitempty"`
}

// PhysicalTable is one upstream table inside a dataset definition.
type PhysicalTable struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"` // TableKind* constants
	DatasourceARN string   `json:"datasourceArn,omitempty"`
	SQL           string   `json:"sql,omitempty"` // custom_sql only
	Columns       []Column `json:"columns,omitempty"`
}

// DatasetDefinition is the parsed definition payload of a dataset.
type DatasetDefinition struct {
	ImportMode       string            `json:"importMode,omitempty"`
	PhysicalTables   []PhysicalTable   `json:"physicalTables,omitempty"`
	OutputColumns    []Column          `json:"outputColumns,omitempty"`
	CalculatedFields []CalculatedField `json:"calculatedFields,omitempty"`
}

// DatasourceDefinition is the parsed definition payload of a datasource.
type DatasourceDefinition struct {
	Kind string `json:"kind,omitempty"` // provider engine, e.g. "postgresql", "s3"
}

// HasDefinition reports whether the definition field matching Type is set.
func (a *Asset) HasDefinition() bool {
	switch a.Type {
	case AssetTypeDashboard:
		return a.Dashboard != nil
	case AssetTypeAnalysis:
		return a.Analysis != nil
	case AssetTypeDataset:
		return a.Dataset != nil
	case AssetTypeDatasource:
		return a.Datasource != nil
	}
	return false
}

// DatasetIDFromRef resolves the dataset id from a DatasetRef, falling back to
// the trailing ARN segment when no explicit id is declared.
func DatasetIDFromRef(ref DatasetRef) string {
	if ref.DatasetID != "" {
		return ref.DatasetID
	}
	return IDFromARN(ref.ARN)
}

// IDFromARN extracts the resource id from a provider ARN-style identifier,
// i.e. everything after the final '/'. Returns the input unchanged when it
// contains no '/'.
func IDFromARN(arn string) string {
	for i := len(arn) - 1; i >= 0; i-- {
		if arn[i] == '/' {
			return arn[i+1:]
		}
	}
	return arn
}
