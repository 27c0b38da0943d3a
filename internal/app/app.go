// Package app provides application-level wiring and dependency injection
// for the bi-atlas admin service.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/catalog"
	"bi-atlas/internal/config"
	"bi-atlas/internal/db/repository"
	"bi-atlas/internal/domain"
	"bi-atlas/internal/export"
	"bi-atlas/internal/lineage"
	"bi-atlas/internal/source"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// the blob store, database handles, and config.
type Deps struct {
	Cfg     *config.Config
	Store   domain.BlobStore
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application services.
type App struct {
	Orchestrator *export.Orchestrator
	Scheduler    *export.Scheduler
	Index        *catalog.IndexBuilder
	Catalog      *catalog.Builder
	Lineage      *lineage.Resolver
	Assets       *assets.Repository
	Meta         domain.FieldMetadataRepository
}

// New wires all repositories and services from the provided deps. The
// orchestrator inspects persisted sessions so a crash mid-export is either
// adopted or healed before the first request arrives.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	src := source.New(&cfg.Source)
	repo := assets.NewRepository(deps.Store)
	meta := repository.NewFieldMetadataRepo(deps.WriteDB, deps.ReadDB)

	indexer := catalog.NewIndexBuilder(deps.Store, repo, logger)
	cat := catalog.NewBuilder(deps.Store, repo, indexer, meta, logger)
	lin := lineage.NewResolver(repo, logger)

	proc := export.NewProcessor(src, repo, export.ProcessorOptions{
		PageSize:    cfg.Export.PageSize,
		Workers:     cfg.Export.WorkerPool,
		MaxAttempts: cfg.Export.MaxAttempts,
	}, logger.With("component", "processor"))

	orch := export.NewOrchestrator(deps.Store, proc, indexer, logger.With("component", "orchestrator"))
	if err := orch.Restore(ctx); err != nil {
		return nil, err
	}

	sched := export.NewScheduler(orch, cfg.Export.Schedule, logger.With("component", "scheduler"))

	return &App{
		Orchestrator: orch,
		Scheduler:    sched,
		Index:        indexer,
		Catalog:      cat,
		Lineage:      lin,
		Assets:       repo,
		Meta:         meta,
	}, nil
}

// Close releases background resources held by the app.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Orchestrator.Close()
}
