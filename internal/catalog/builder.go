package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
)

// calculatedKeySuffix separates a calculated-field occurrence from a plain
// field of the same name within the same dataset during collection.
const calculatedKeySuffix = "::calculated"

// knownEngines are substrings scanned in a relational table's upstream
// datasource reference to sub-classify the datasource type.
var knownEngines = []string{
	"redshift",
	"postgres",
	"mysql",
	"mariadb",
	"aurora",
	"snowflake",
	"athena",
	"oracle",
	"sqlserver",
}

// Builder produces the name-deduplicated cross-source field catalog, cached
// in the blob store and rebuilt on demand.
type Builder struct {
	store  domain.BlobStore
	repo   *assets.Repository
	index  *IndexBuilder
	meta   domain.FieldMetadataRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewBuilder creates a catalog builder.
func NewBuilder(store domain.BlobStore, repo *assets.Repository, index *IndexBuilder, meta domain.FieldMetadataRepository, logger *slog.Logger) *Builder {
	return &Builder{
		store:  store,
		repo:   repo,
		index:  index,
		meta:   meta,
		logger: logger.With("component", "catalog"),
		now:    time.Now,
	}
}

// Get returns the cached catalog when one exists and is non-empty. There is
// no freshness check; callers wanting current data must call Rebuild.
func (b *Builder) Get(ctx context.Context) (*domain.DataCatalog, error) {
	var cached domain.DataCatalog
	err := blob.GetJSON(ctx, b.store, blob.CatalogKey, &cached)
	if err == nil && len(cached.Fields)+len(cached.CalculatedFields) > 0 {
		return &cached, nil
	}
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return b.Rebuild(ctx)
}

// Rebuild builds the catalog from the current asset universe and replaces
// the cached blob. An empty asset index yields an empty catalog that is not
// cached, so the next call retries once assets exist.
func (b *Builder) Rebuild(ctx context.Context) (*domain.DataCatalog, error) {
	start := b.now()

	ix, err := b.index.Get(ctx)
	if err != nil {
		return nil, err
	}
	if ix.Count() == 0 {
		b.logger.Info("asset index empty, returning empty catalog")
		return &domain.DataCatalog{GeneratedAt: b.now()}, nil
	}

	loaded, err := b.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}

	datasets := b.datasetInfoMap(loaded[domain.AssetTypeDataset])

	c := newCollector()
	b.collectDatasets(c, loaded[domain.AssetTypeDataset], datasets)
	b.collectConsumers(c, domain.AssetTypeAnalysis, loaded[domain.AssetTypeAnalysis], datasets)
	b.collectConsumers(c, domain.AssetTypeDashboard, loaded[domain.AssetTypeDashboard], datasets)

	catalog := b.merge(ctx, c)
	catalog.GeneratedAt = b.now()
	catalog.TotalDatasets = len(datasets)

	if err := blob.PutJSON(ctx, b.store, blob.CatalogKey, catalog); err != nil {
		return nil, fmt.Errorf("persist catalog: %w", err)
	}

	b.logger.Info("data catalog rebuilt",
		"fields", catalog.TotalFields,
		"calculated", catalog.TotalCalculated,
		"datasets", catalog.TotalDatasets,
		"duration", b.now().Sub(start).Round(time.Millisecond),
	)
	return catalog, nil
}

// datasetInfo carries the resolved per-dataset attributes later passes need
// when a dashboard or analysis references the dataset by id or alias.
type datasetInfo struct {
	Name           string
	DatasourceType string
	ImportMode     string
}

func (b *Builder) datasetInfoMap(list []*domain.Asset) map[string]datasetInfo {
	out := make(map[string]datasetInfo, len(list))
	for _, a := range list {
		if a.Dataset == nil {
			continue
		}
		out[a.ID] = datasetInfo{
			Name:           a.Name,
			DatasourceType: datasourceTypeFor(a.Dataset),
			ImportMode:     a.Dataset.ImportMode,
		}
	}
	return out
}

// datasourceTypeFor infers a human-readable datasource type from the shape
// of a dataset's first physical table.
func datasourceTypeFor(def *domain.DatasetDefinition) string {
	if len(def.PhysicalTables) == 0 {
		return "uploaded file"
	}
	t := def.PhysicalTables[0]
	switch t.Kind {
	case domain.TableKindObjectStorage:
		return "S3"
	case domain.TableKindCustomSQL:
		return "custom SQL"
	case domain.TableKindRelational:
		arn := strings.ToLower(t.DatasourceARN)
		for _, engine := range knownEngines {
			if strings.Contains(arn, engine) {
				return engine
			}
		}
		return "relational database"
	}
	return "uploaded file"
}

// fieldRecord is one collected field occurrence group prior to the merge
// pass, keyed by name::datasetId (calculated occurrences suffixed).
type fieldRecord struct {
	name         string
	dataType     string
	isCalculated bool
	expression   string
	sources      []domain.FieldSource
}

// collector accumulates field records in first-occurrence order so the
// merge pass and variant ranking stay deterministic.
type collector struct {
	records map[string]*fieldRecord
	order   []string
}

func newCollector() *collector {
	return &collector{records: make(map[string]*fieldRecord)}
}

func (c *collector) get(key, name string) *fieldRecord {
	rec, ok := c.records[key]
	if !ok {
		rec = &fieldRecord{name: name}
		c.records[key] = rec
		c.order = append(c.order, key)
	}
	return rec
}

// markReferenced flags the plain field's collected sources as used inside a
// calculated-field expression. Missing fields are skipped.
func (c *collector) markReferenced(fieldName, datasetID string) {
	rec, ok := c.records[fieldName+"::"+datasetID]
	if !ok {
		return
	}
	for i := range rec.sources {
		rec.sources[i].UsedInCalculatedField = true
	}
}

// collectDatasets records every output column and calculated field declared
// directly on a dataset.
func (b *Builder) collectDatasets(c *collector, list []*domain.Asset, datasets map[string]datasetInfo) {
	for _, a := range list {
		if a.Dataset == nil {
			continue
		}
		info := datasets[a.ID]
		src := domain.FieldSource{
			AssetType:      domain.AssetTypeDataset,
			AssetID:        a.ID,
			AssetName:      a.Name,
			DatasetID:      a.ID,
			DatasetName:    a.Name,
			DatasourceType: info.DatasourceType,
			ImportMode:     info.ImportMode,
			LastModified:   a.LastModified,
		}

		for _, col := range a.Dataset.OutputColumns {
			rec := c.get(col.Name+"::"+a.ID, col.Name)
			if rec.dataType == "" {
				rec.dataType = col.DataType
			}
			rec.sources = append(rec.sources, src)
		}

		for _, cf := range a.Dataset.CalculatedFields {
			rec := c.get(cf.Name+"::"+a.ID+calculatedKeySuffix, cf.Name)
			rec.isCalculated = true
			rec.expression = cf.Expression
			if rec.dataType == "" {
				rec.dataType = cf.DataType
			}
			rec.sources = append(rec.sources, src)

			for _, ref := range referencedFields(cf.Expression) {
				c.markReferenced(ref, a.ID)
			}
		}
	}
}

// collectConsumers records visual fields and calculated fields declared on
// analyses or dashboards, resolving dataset aliases through the declared
// dataset references.
func (b *Builder) collectConsumers(c *collector, t domain.AssetType, list []*domain.Asset, datasets map[string]datasetInfo) {
	for _, a := range list {
		var refs []domain.DatasetRef
		var visualFields []domain.FieldRef
		var calculated []domain.CalculatedField
		switch t {
		case domain.AssetTypeAnalysis:
			if a.Analysis == nil {
				continue
			}
			refs = a.Analysis.DatasetRefs
			visualFields = a.Analysis.VisualFields
			calculated = a.Analysis.CalculatedFields
		case domain.AssetTypeDashboard:
			if a.Dashboard == nil {
				continue
			}
			refs = a.Dashboard.DatasetRefs
			visualFields = a.Dashboard.VisualFields
			calculated = a.Dashboard.CalculatedFields
		default:
			continue
		}

		aliases := datasetAliases(refs)
		source := func(datasetID string, inVisual bool) domain.FieldSource {
			src := domain.FieldSource{
				AssetType:     t,
				AssetID:       a.ID,
				AssetName:     a.Name,
				DatasetID:     datasetID,
				LastModified:  a.LastModified,
				UsedInVisuals: inVisual,
			}
			if info, ok := datasets[datasetID]; ok {
				src.DatasetName = info.Name
				src.DatasourceType = info.DatasourceType
				src.ImportMode = info.ImportMode
			}
			return src
		}

		for _, fr := range visualFields {
			datasetID := resolveDataset(aliases, refs, fr.DatasetIdentifier)
			rec := c.get(fr.FieldName+"::"+datasetID, fr.FieldName)
			rec.sources = append(rec.sources, source(datasetID, true))
		}

		for _, cf := range calculated {
			datasetID := resolveDataset(aliases, refs, cf.DatasetIdentifier)
			rec := c.get(cf.Name+"::"+datasetID+calculatedKeySuffix, cf.Name)
			rec.isCalculated = true
			rec.expression = cf.Expression
			if rec.dataType == "" {
				rec.dataType = cf.DataType
			}
			rec.sources = append(rec.sources, source(datasetID, false))

			for _, ref := range referencedFields(cf.Expression) {
				c.markReferenced(ref, datasetID)
			}
		}
	}
}

// datasetAliases maps both the declared alias and the stable id of each
// dataset reference onto the stable id.
func datasetAliases(refs []domain.DatasetRef) map[string]string {
	out := make(map[string]string, len(refs)*2)
	for _, ref := range refs {
		id := domain.DatasetIDFromRef(ref)
		if id == "" {
			continue
		}
		out[id] = id
		if ref.Identifier != "" {
			out[ref.Identifier] = id
		}
	}
	return out
}

// resolveDataset maps a field's dataset identifier onto the stable dataset
// id. An empty identifier falls back to the sole declared reference when the
// asset uses exactly one dataset.
func resolveDataset(aliases map[string]string, refs []domain.DatasetRef, identifier string) string {
	if identifier == "" {
		if len(refs) == 1 {
			return domain.DatasetIDFromRef(refs[0])
		}
		return ""
	}
	if id, ok := aliases[identifier]; ok {
		return id
	}
	return identifier
}

// merge groups collected records purely by field name, so a physical field
// in one dataset and a same-named calculated field in an analysis collapse
// into one catalog entry.
func (b *Builder) merge(ctx context.Context, c *collector) *domain.DataCatalog {
	type mergedField struct {
		field     *domain.CatalogField
		sourceAt  map[string]int // "type::id" pair -> index in Sources
		variants  []domain.ExpressionVariant
		variantAt map[string]int
	}

	merged := make(map[string]*mergedField)
	var nameOrder []string

	for _, key := range c.order {
		rec := c.records[key]
		m, ok := merged[rec.name]
		if !ok {
			m = &mergedField{
				field: &domain.CatalogField{
					ID:   fieldID(rec.name),
					Name: rec.name,
				},
				sourceAt:  make(map[string]int),
				variantAt: make(map[string]int),
			}
			merged[rec.name] = m
			nameOrder = append(nameOrder, rec.name)
		}

		if rec.isCalculated {
			m.field.IsCalculated = true
		}
		if m.field.DataType == "" {
			m.field.DataType = rec.dataType
		}

		for _, src := range rec.sources {
			pair := string(src.AssetType) + "::" + src.AssetID
			if at, ok := m.sourceAt[pair]; ok {
				m.field.Sources[at] = src
				continue
			}
			m.sourceAt[pair] = len(m.field.Sources)
			m.field.Sources = append(m.field.Sources, src)
		}

		if rec.isCalculated && rec.expression != "" {
			at, ok := m.variantAt[rec.expression]
			if !ok {
				at = len(m.variants)
				m.variantAt[rec.expression] = at
				m.variants = append(m.variants, domain.ExpressionVariant{Expression: rec.expression})
			}
			m.variants[at].Sources = append(m.variants[at].Sources, rec.sources...)
		}
	}

	catalog := &domain.DataCatalog{}
	for _, name := range nameOrder {
		m := merged[name]
		f := m.field

		if f.IsCalculated && len(m.variants) > 0 {
			sort.SliceStable(m.variants, func(i, j int) bool {
				return len(m.variants[i].Sources) > len(m.variants[j].Sources)
			})
			f.Expression = m.variants[0].Expression
			if len(m.variants) > 1 {
				f.HasVariants = true
				f.Variants = m.variants
			}
		}

		f.UsageCount = usageCount(f.Sources)
		f.Lineage = fieldLineage(f.Sources)
		b.attachMetadata(ctx, f)

		if f.IsCalculated {
			catalog.CalculatedFields = append(catalog.CalculatedFields, *f)
		} else {
			catalog.Fields = append(catalog.Fields, *f)
		}
	}

	catalog.TotalFields = len(catalog.Fields)
	catalog.TotalCalculated = len(catalog.CalculatedFields)
	return catalog
}

// usageCount counts consuming sources only. Dataset sources are definitions,
// not consumption.
func usageCount(sources []domain.FieldSource) int {
	n := 0
	for _, src := range sources {
		if src.AssetType == domain.AssetTypeAnalysis || src.AssetType == domain.AssetTypeDashboard {
			n++
		}
	}
	return n
}

// fieldLineage summarizes where the field is defined and consumed. Returns
// nil when no source carries lineage information.
func fieldLineage(sources []domain.FieldSource) *domain.FieldLineage {
	lin := &domain.FieldLineage{}
	for _, src := range sources {
		switch src.AssetType {
		case domain.AssetTypeDataset:
			if lin.DatasetID == "" {
				lin.DatasetID = src.DatasetID
				lin.DatasetName = src.DatasetName
				lin.DatasourceType = src.DatasourceType
			}
		case domain.AssetTypeAnalysis:
			lin.AnalysisIDs = appendUnique(lin.AnalysisIDs, src.AssetID)
		case domain.AssetTypeDashboard:
			lin.DashboardIDs = appendUnique(lin.DashboardIDs, src.AssetID)
		}
	}
	if lin.DatasetID == "" && len(lin.AnalysisIDs) == 0 && len(lin.DashboardIDs) == 0 {
		return nil
	}
	return lin
}

// attachMetadata pulls operator-supplied documentation for the field, keyed
// by its first dataset source. Absence is not an error.
func (b *Builder) attachMetadata(ctx context.Context, f *domain.CatalogField) {
	if b.meta == nil {
		return
	}
	var datasetID string
	for _, src := range f.Sources {
		if src.AssetType == domain.AssetTypeDataset {
			datasetID = src.DatasetID
			break
		}
	}
	if datasetID == "" {
		return
	}

	md, err := b.meta.Get(ctx, datasetID, f.Name)
	if err != nil {
		if !domain.IsNotFound(err) {
			b.logger.Warn("field metadata lookup failed", "dataset", datasetID, "field", f.Name, "error", err)
		}
		return
	}
	f.Metadata = md
}

// fieldID derives a deterministic id from the field name so successive
// rebuilds over unchanged assets produce identical catalogs.
func fieldID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("bi-atlas/catalog/field/"+name)).String()
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
