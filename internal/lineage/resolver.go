package lineage

import (
	"context"
	"log/slog"
	"time"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/domain"
)

// Resolver builds the uses/used_by relationship graph across the persisted
// asset universe, including edges reachable only through an intermediate
// dataset. References to assets missing from the universe are skipped;
// partial lineage is preferred over failure.
type Resolver struct {
	repo   *assets.Repository
	logger *slog.Logger
}

// NewResolver creates a lineage resolver over the asset repository.
func NewResolver(repo *assets.Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger.With("component", "lineage")}
}

// Resolve returns the full relationship list for one asset id.
func (r *Resolver) Resolve(ctx context.Context, id string) (*domain.AssetLineage, error) {
	all, err := r.ResolveAll(ctx)
	if err != nil {
		return nil, err
	}
	lin, ok := all[id]
	if !ok {
		return nil, domain.ErrNotFound("asset %s not found", id)
	}
	return lin, nil
}

// ResolveAll computes lineage for every asset, keyed by asset id.
func (r *Resolver) ResolveAll(ctx context.Context) (map[string]*domain.AssetLineage, error) {
	start := time.Now()

	loaded, err := r.repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	g := newGraph()
	for _, typed := range loaded {
		for _, a := range typed {
			g.addNode(a)
		}
	}

	r.directEdges(g, loaded)
	r.transitiveClosure(g)

	r.logger.Debug("lineage resolved",
		"assets", len(g.nodes),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return g.nodes, nil
}

// directEdges adds the declared relationships parsed from definitions.
func (r *Resolver) directEdges(g *graph, loaded map[domain.AssetType][]*domain.Asset) {
	for _, a := range loaded[domain.AssetTypeDashboard] {
		if a.Dashboard == nil {
			continue
		}
		if arn := a.Dashboard.SourceAnalysisARN; arn != "" {
			g.link(a.ID, domain.IDFromARN(arn))
		}
		for _, ref := range a.Dashboard.DatasetRefs {
			g.link(a.ID, domain.DatasetIDFromRef(ref))
		}
	}

	for _, a := range loaded[domain.AssetTypeAnalysis] {
		if a.Analysis == nil {
			continue
		}
		for _, ref := range a.Analysis.DatasetRefs {
			g.link(a.ID, domain.DatasetIDFromRef(ref))
		}
	}

	for _, a := range loaded[domain.AssetTypeDataset] {
		if a.Dataset == nil {
			continue
		}
		for _, table := range a.Dataset.PhysicalTables {
			if table.DatasourceARN == "" {
				continue
			}
			g.link(a.ID, domain.IDFromARN(table.DatasourceARN))
		}
	}
}

// transitiveClosure connects datasources to the analyses and dashboards that
// consume them through a dataset, so one lookup answers "what ultimately
// depends on this datasource" without traversal at query time.
func (r *Resolver) transitiveClosure(g *graph) {
	for id, node := range g.nodes {
		if node.AssetType != domain.AssetTypeDatasource {
			continue
		}

		// Snapshot before linking; link appends to this node's list.
		datasets := targetsOf(node, domain.RelationshipUsedBy, domain.AssetTypeDataset)
		for _, datasetID := range datasets {
			dsNode, ok := g.nodes[datasetID]
			if !ok {
				continue
			}
			consumers := append(
				targetsOf(dsNode, domain.RelationshipUsedBy, domain.AssetTypeAnalysis),
				targetsOf(dsNode, domain.RelationshipUsedBy, domain.AssetTypeDashboard)...,
			)
			for _, consumerID := range consumers {
				g.link(consumerID, id)
			}
		}
	}
}

// targetsOf collects the target ids of a node's relationships matching the
// given relationship and target type.
func targetsOf(node *domain.AssetLineage, rel domain.RelationshipType, t domain.AssetType) []string {
	var out []string
	for _, r := range node.Relationships {
		if r.Type == rel && r.TargetType == t {
			out = append(out, r.TargetID)
		}
	}
	return out
}

// graph accumulates lineage nodes with per-node relationship dedup by
// target id, target type, and relationship type.
type graph struct {
	nodes map[string]*domain.AssetLineage
	seen  map[string]map[string]struct{}
}

func newGraph() *graph {
	return &graph{
		nodes: make(map[string]*domain.AssetLineage),
		seen:  make(map[string]map[string]struct{}),
	}
}

func (g *graph) addNode(a *domain.Asset) {
	g.nodes[a.ID] = &domain.AssetLineage{
		AssetID:   a.ID,
		AssetType: a.Type,
		AssetName: a.Name,
	}
	g.seen[a.ID] = make(map[string]struct{})
}

// link records that user uses used, adding the symmetric used_by edge.
// Either side missing from the universe skips the edge silently.
func (g *graph) link(userID, usedID string) {
	user, ok := g.nodes[userID]
	if !ok {
		return
	}
	used, ok := g.nodes[usedID]
	if !ok {
		return
	}
	g.addEdge(user, used, domain.RelationshipUses)
	g.addEdge(used, user, domain.RelationshipUsedBy)
}

func (g *graph) addEdge(from, to *domain.AssetLineage, rel domain.RelationshipType) {
	key := to.AssetID + "|" + string(to.AssetType) + "|" + string(rel)
	if _, ok := g.seen[from.AssetID][key]; ok {
		return
	}
	g.seen[from.AssetID][key] = struct{}{}
	from.Relationships = append(from.Relationships, domain.LineageRelationship{
		TargetID:   to.AssetID,
		TargetType: to.AssetType,
		TargetName: to.AssetName,
		Type:       rel,
	})
}
