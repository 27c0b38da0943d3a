package source

import (
	"context"
	"time"

	"bi-atlas/internal/domain"
)

// Wire shapes for asset detail responses. Dashboards and analyses have two
// historical dataset declaration forms: a flat dataSetArns list on older
// assets, and dataSetIdentifierDeclarations inside the definition on newer
// ones. Both are normalized into domain.DatasetRef.

type wireDeclaration struct {
	Identifier string `json:"identifier"`
	DataSetARN string `json:"dataSetArn"`
}

type wireCalculatedField struct {
	Name              string `json:"name"`
	DataSetIdentifier string `json:"dataSetIdentifier"`
	Expression        string `json:"expression"`
	DataType          string `json:"dataType"`
}

type wireFieldRef struct {
	FieldName         string `json:"fieldName"`
	DataSetIdentifier string `json:"dataSetIdentifier"`
}

type wireVisualDefinition struct {
	DataSetIdentifierDeclarations []wireDeclaration     `json:"dataSetIdentifierDeclarations"`
	CalculatedFields              []wireCalculatedField `json:"calculatedFields"`
	FieldWells                    []wireFieldRef        `json:"fieldWells"`
}

type wireColumn struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

type wirePhysicalTable struct {
	ID            string       `json:"id"`
	Kind          string       `json:"kind"`
	DataSourceARN string       `json:"dataSourceArn"`
	SQLQuery      string       `json:"sqlQuery"`
	Columns       []wireColumn `json:"columns"`
}

type wireAssetDetail struct {
	ID           string    `json:"id"`
	ARN          string    `json:"arn"`
	Name         string    `json:"name"`
	LastModified time.Time `json:"lastModified"`
	SizeBytes    int64     `json:"sizeBytes"`

	// dashboards
	SourceAnalysisARN string `json:"sourceAnalysisArn"`
	PublishedVersion  int64  `json:"publishedVersion"`

	// dashboards + analyses
	DataSetARNs []string              `json:"dataSetArns"`
	Definition  *wireVisualDefinition `json:"definition"`

	// datasets
	ImportMode     string              `json:"importMode"`
	PhysicalTables []wirePhysicalTable `json:"physicalTables"`
	OutputColumns  []wireColumn        `json:"outputColumns"`

	// datasets + mixed
	CalculatedFields []wireCalculatedField `json:"calculatedFields"`

	// datasources
	Type string `json:"type"`
}

func convertDatasetRefs(d *wireAssetDetail) []domain.DatasetRef {
	var refs []domain.DatasetRef
	if d.Definition != nil {
		for _, decl := range d.Definition.DataSetIdentifierDeclarations {
			refs = append(refs, domain.DatasetRef{
				Identifier: decl.Identifier,
				ARN:        decl.DataSetARN,
				DatasetID:  domain.IDFromARN(decl.DataSetARN),
			})
		}
	}
	// Older declaration shape: a flat ARN list with no identifier aliases.
	for _, arn := range d.DataSetARNs {
		refs = append(refs, domain.DatasetRef{
			ARN:       arn,
			DatasetID: domain.IDFromARN(arn),
		})
	}
	return refs
}

func convertCalculatedFields(fields []wireCalculatedField) []domain.CalculatedField {
	out := make([]domain.CalculatedField, 0, len(fields))
	for _, f := range fields {
		out = append(out, domain.CalculatedField{
			Name:              f.Name,
			DatasetIdentifier: f.DataSetIdentifier,
			Expression:        f.Expression,
			DataType:          f.DataType,
		})
	}
	return out
}

func convertFieldRefs(refs []wireFieldRef) []domain.FieldRef {
	out := make([]domain.FieldRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, domain.FieldRef{
			FieldName:         r.FieldName,
			DatasetIdentifier: r.DataSetIdentifier,
		})
	}
	return out
}

func convertColumns(cols []wireColumn) []domain.Column {
	out := make([]domain.Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, domain.Column{Name: c.Name, DataType: c.DataType})
	}
	return out
}

// toAsset converts a wire detail into a typed domain asset.
func (d *wireAssetDetail) toAsset(t domain.AssetType) *domain.Asset {
	asset := &domain.Asset{
		ID:           d.ID,
		ARN:          d.ARN,
		Name:         d.Name,
		Type:         t,
		SizeBytes:    d.SizeBytes,
		LastModified: d.LastModified,
	}

	switch t {
	case domain.AssetTypeDashboard:
		def := &domain.DashboardDefinition{
			SourceAnalysisARN: d.SourceAnalysisARN,
			PublishedVersion:  d.PublishedVersion,
			DatasetRefs:       convertDatasetRefs(d),
		}
		if d.Definition != nil {
			def.CalculatedFields = convertCalculatedFields(d.Definition.CalculatedFields)
			def.VisualFields = convertFieldRefs(d.Definition.FieldWells)
		}
		asset.Dashboard = def
	case domain.AssetTypeAnalysis:
		def := &domain.AnalysisDefinition{
			DatasetRefs: convertDatasetRefs(d),
		}
		if d.Definition != nil {
			def.CalculatedFields = convertCalculatedFields(d.Definition.CalculatedFields)
			def.VisualFields = convertFieldRefs(d.Definition.FieldWells)
		}
		asset.Analysis = def
	case domain.AssetTypeDataset:
		def := &domain.DatasetDefinition{
			ImportMode:       d.ImportMode,
			OutputColumns:    convertColumns(d.OutputColumns),
			CalculatedFields: convertCalculatedFields(d.CalculatedFields),
		}
		for _, pt := range d.PhysicalTables {
			def.PhysicalTables = append(def.PhysicalTables, domain.PhysicalTable{
				ID:            pt.ID,
				Kind:          pt.Kind,
				DatasourceARN: pt.DataSourceARN,
				SQL:           pt.SQLQuery,
				Columns:       convertColumns(pt.Columns),
			})
		}
		asset.Dataset = def
	case domain.AssetTypeDatasource:
		asset.Datasource = &domain.DatasourceDefinition{Kind: d.Type}
	}

	return asset
}

// GetAsset fetches the full detail for one asset and parses its definition.
func (c *Client) GetAsset(ctx context.Context, t domain.AssetType, id string) (*domain.Asset, error) {
	var detail wireAssetDetail
	path := c.accountPath(typePath(t), id)
	if err := c.get(ctx, path, nil, &detail); err != nil {
		return nil, err
	}
	if detail.ID == "" {
		detail.ID = id
	}
	return detail.toAsset(t), nil
}

// GetPermissions fetches the permission grants for one asset.
func (c *Client) GetPermissions(ctx context.Context, t domain.AssetType, id string) ([]domain.Permission, error) {
	var resp struct {
		Permissions []struct {
			Principal     string   `json:"principal"`
			PrincipalType string   `json:"principalType"`
			Actions       []string `json:"actions"`
		} `json:"permissions"`
	}
	path := c.accountPath(typePath(t), id, "permissions")
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Permission, 0, len(resp.Permissions))
	for _, p := range resp.Permissions {
		out = append(out, domain.Permission{
			Principal:     p.Principal,
			PrincipalType: p.PrincipalType,
			Actions:       p.Actions,
		})
	}
	return out, nil
}

// GetTags fetches the tag set for one asset.
func (c *Client) GetTags(ctx context.Context, t domain.AssetType, id string) ([]domain.Tag, error) {
	var resp struct {
		Tags []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"tags"`
	}
	path := c.accountPath(typePath(t), id, "tags")
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Tag, 0, len(resp.Tags))
	for _, tag := range resp.Tags {
		out = append(out, domain.Tag{Key: tag.Key, Value: tag.Value})
	}
	return out, nil
}
