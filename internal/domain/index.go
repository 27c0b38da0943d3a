package domain

import "time"

// AssetIndexEntry is a denormalized per-asset summary kept in the flattened
// master index to avoid re-listing the blob store on every read.
type AssetIndexEntry struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           AssetType    `json:"type"`
	SizeBytes      int64        `json:"sizeBytes"`
	LastExported   time.Time    `json:"lastExported"`
	LastModified   time.Time    `json:"lastModified,omitempty"`
	Tags           []Tag        `json:"tags,omitempty"`
	Permissions    []Permission `json:"permissions,omitempty"`
	ImportMode     string       `json:"importMode,omitempty"`     // datasets
	DatasourceKind string       `json:"datasourceKind,omitempty"` // datasources
}

// AssetIndex is the consolidated index document grouped by asset type,
// persisted at assets/index/master-index.json.
type AssetIndex struct {
	GeneratedAt time.Time                       `json:"generatedAt"`
	Assets      map[AssetType][]AssetIndexEntry `json:"assets"`
}

// Count returns the total number of indexed assets across all types.
func (ix *AssetIndex) Count() int {
	n := 0
	for _, entries := range ix.Assets {
		n += len(entries)
	}
	return n
}
