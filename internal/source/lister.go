package source

import (
	"context"
	"encoding/json"
	"time"

	"bi-atlas/internal/domain"
)

// summaryItem is one listing item on the wire.
type summaryItem struct {
	ID            string    `json:"id"`
	ARN           string    `json:"arn"`
	Name          string    `json:"name"`
	LastUpdated   time.Time `json:"lastUpdated"`
	LastPublished time.Time `json:"lastPublished"`
	ImportMode    string    `json:"importMode"`
	Type          string    `json:"type"` // datasource engine kind
}

// listResponse is one listing page on the wire.
type listResponse struct {
	Items     []summaryItem `json:"items"`
	NextToken string        `json:"nextToken"`
}

func (it summaryItem) toSummary(t domain.AssetType) domain.AssetSummary {
	return domain.AssetSummary{
		ID:            it.ID,
		ARN:           it.ARN,
		Name:          it.Name,
		Type:          t,
		LastUpdated:   it.LastUpdated,
		LastPublished: it.LastPublished,
		ImportMode:    it.ImportMode,
		SourceKind:    it.Type,
	}
}

// lister is the standard paginated lister used by dashboards, analyses, and
// datasets.
type lister struct {
	c *Client
	t domain.AssetType
}

var _ domain.AssetLister = (*lister)(nil)

func (l *lister) AssetType() domain.AssetType { return l.t }

func (l *lister) ListPage(ctx context.Context, nextToken string, pageSize int) (*domain.SummaryPage, error) {
	var resp listResponse
	path := l.c.accountPath(typePath(l.t))
	if err := l.c.get(ctx, path, pageQuery(nextToken, pageSize), &resp); err != nil {
		return nil, err
	}

	page := &domain.SummaryPage{NextToken: resp.NextToken}
	for _, it := range resp.Items {
		page.Items = append(page.Items, it.toSummary(l.t))
	}
	return page, nil
}

// legacyDatasourceLister lists datasources through the legacy endpoint. The
// primary listing API chokes on datasources whose parameter union is empty
// (valid but degenerate responses), so this path decodes the raw payload
// tolerantly and extracts only the summary fields.
type legacyDatasourceLister struct {
	c *Client
}

var _ domain.AssetLister = (*legacyDatasourceLister)(nil)

func (l *legacyDatasourceLister) AssetType() domain.AssetType { return domain.AssetTypeDatasource }

func (l *legacyDatasourceLister) ListPage(ctx context.Context, nextToken string, pageSize int) (*domain.SummaryPage, error) {
	var resp struct {
		Items     []json.RawMessage `json:"items"`
		NextToken string            `json:"nextToken"`
	}
	path := "/legacy" + l.c.accountPath("datasources")
	if err := l.c.get(ctx, path, pageQuery(nextToken, pageSize), &resp); err != nil {
		return nil, err
	}

	page := &domain.SummaryPage{NextToken: resp.NextToken}
	for _, raw := range resp.Items {
		var it summaryItem
		// The partial struct only touches summary fields, so degenerate
		// parameter unions elsewhere in the item cannot fail the decode.
		if err := json.Unmarshal(raw, &it); err != nil {
			continue
		}
		if it.ID == "" {
			continue
		}
		page.Items = append(page.Items, it.toSummary(domain.AssetTypeDatasource))
	}
	return page, nil
}

// Lister returns the page lister for one asset type. Datasources go through
// the legacy path; everything else uses the primary listing API.
func (c *Client) Lister(t domain.AssetType) domain.AssetLister {
	if t == domain.AssetTypeDatasource {
		return &legacyDatasourceLister{c: c}
	}
	return &lister{c: c, t: t}
}
