package domain

// RelationshipType is the direction of a lineage edge relative to its owner.
type RelationshipType string

const (
	// RelationshipUses means the owning asset depends on the target.
	RelationshipUses RelationshipType = "uses"
	// RelationshipUsedBy means the target depends on the owning asset.
	RelationshipUsedBy RelationshipType = "used_by"
)

// LineageRelationship is one directed edge from the owning asset to a target.
type LineageRelationship struct {
	TargetID   string           `json:"targetId"`
	TargetType AssetType        `json:"targetType"`
	TargetName string           `json:"targetName,omitempty"`
	Type       RelationshipType `json:"type"`
}

// AssetLineage is one asset plus its full deduplicated relationship list,
// direct and transitive.
type AssetLineage struct {
	AssetID       string                `json:"assetId"`
	AssetType     AssetType             `json:"assetType"`
	AssetName     string                `json:"assetName,omitempty"`
	Relationships []LineageRelationship `json:"relationships"`
}
