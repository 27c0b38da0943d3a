package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/domain"
)

// Listing and batching constants.
const (
	defaultPageSize = 100

	interPageDelay     = 200 * time.Millisecond
	interPageDelaySlow = 500 * time.Millisecond
	slowdownThreshold  = 1000 // items collected before the longer delay kicks in

	checkpointEveryPages = 5
	checkpointEveryItems = 500

	defaultWorkerPool = 3
)

// ProgressSink receives progress updates from a processor. The orchestrator
// implements it per (session, progress-key); all session mutation funnels
// through the sink so the single-writer rule holds.
type ProgressSink interface {
	Update(current, total int, message string)
	RecordError(e domain.ExportError)
	Checkpoint()
	Cancelled() bool
}

// Processor turns one asset type's remote catalog into persisted blobs plus
// tag and permission enrichment. Listing is strictly sequential; per-asset
// enrichment runs under a bounded worker pool.
type Processor struct {
	source   domain.AssetSource
	repo     *assets.Repository
	pageSize int
	workers  int
	retry    RetryPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// ProcessorOptions tunes a Processor; zero values take defaults.
type ProcessorOptions struct {
	PageSize    int
	Workers     int
	MaxAttempts int
}

// NewProcessor creates a processor over the given source and asset repository.
func NewProcessor(source domain.AssetSource, repo *assets.Repository, opts ProcessorOptions, logger *slog.Logger) *Processor {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkerPool
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Processor{
		source:   source,
		repo:     repo,
		pageSize: opts.PageSize,
		workers:  opts.Workers,
		retry: RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			Logger:      logger,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Export lists one asset type and processes every summary. Returns the final
// stats; a listing failure aborts the type and is returned after being
// recorded against the sink.
func (p *Processor) Export(ctx context.Context, t domain.AssetType, forceRefresh bool, sink ProgressSink) (*domain.ExportStats, error) {
	summaries, err := p.listAll(ctx, p.source.Lister(t), sink)
	if err != nil {
		sink.RecordError(domain.ExportError{
			Message:   fmt.Sprintf("listing %s failed: %v", t, err),
			ErrorType: "listing",
			Timestamp: p.now(),
		})
		return nil, fmt.Errorf("list %s: %w", t, err)
	}

	stats := p.processBatch(ctx, t, summaries, forceRefresh, sink)
	return stats, nil
}

// listAll drives the paginated listing loop: page fetches are retried with
// backoff, successful pages are followed by a self-throttling delay, and the
// session is checkpointed every few pages or few hundred items. The final
// checkpoint after the loop is unconditional.
func (p *Processor) listAll(ctx context.Context, lister domain.AssetLister, sink ProgressSink) ([]domain.AssetSummary, error) {
	var (
		collected      []domain.AssetSummary
		nextToken      string
		pages          int
		lastCheckpoint int // items collected at the last checkpoint
	)

	for {
		if sink.Cancelled() {
			return nil, domain.ErrConflict("export cancelled")
		}

		var page *domain.SummaryPage
		op := fmt.Sprintf("list %s page %d", lister.AssetType(), pages+1)
		err := p.retry.Do(ctx, op, func() error {
			var ferr error
			page, ferr = lister.ListPage(ctx, nextToken, p.pageSize)
			return ferr
		})
		if err != nil {
			return nil, err
		}

		collected = append(collected, page.Items...)
		pages++

		sink.Update(len(collected), 0, fmt.Sprintf("listed %d %s", len(collected), lister.AssetType()))
		if pages%checkpointEveryPages == 0 || len(collected)-lastCheckpoint >= checkpointEveryItems {
			sink.Checkpoint()
			lastCheckpoint = len(collected)
		}

		if page.NextToken == "" {
			break
		}
		nextToken = page.NextToken

		delay := interPageDelay
		if len(collected) > slowdownThreshold {
			delay = interPageDelaySlow
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return collected, err
		}
	}

	sink.Checkpoint()
	return collected, nil
}

// processBatch fetches, diffs, enriches, and persists each summary under the
// bounded worker pool. Individual asset failures are recorded and do not
// abort siblings.
func (p *Processor) processBatch(ctx context.Context, t domain.AssetType, summaries []domain.AssetSummary, forceRefresh bool, sink ProgressSink) *domain.ExportStats {
	stats := &domain.ExportStats{Total: len(summaries)}
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, summary := range summaries {
		if sink.Cancelled() {
			break
		}
		g.Go(func() error {
			outcome, err := p.processOne(gctx, t, summary, forceRefresh)

			mu.Lock()
			done++
			current := done
			switch {
			case err != nil:
				stats.Errors++
			case outcome == outcomeCached:
				stats.Cached++
			default:
				stats.Updated++
			}
			mu.Unlock()

			if err != nil {
				sink.RecordError(domain.ExportError{
					AssetID:   summary.ID,
					AssetName: summary.Name,
					Message:   err.Error(),
					ErrorType: errorType(err),
					Timestamp: p.now(),
				})
			}
			sink.Update(current, len(summaries), fmt.Sprintf("processed %d/%d %s", current, len(summaries), t))
			if current%checkpointEveryItems == 0 {
				sink.Checkpoint()
			}
			return nil
		})
	}
	_ = g.Wait()

	sink.Checkpoint()
	return stats
}

type processOutcome int

const (
	outcomeUpdated processOutcome = iota
	outcomeCached
)

// processOne handles a single asset: diff against the cached blob, then fetch
// detail, merge permissions and tags, and persist.
func (p *Processor) processOne(ctx context.Context, t domain.AssetType, summary domain.AssetSummary, forceRefresh bool) (processOutcome, error) {
	if !forceRefresh {
		cached, err := p.repo.Get(ctx, t, summary.ID)
		if err == nil && !cached.LastModified.Before(summary.LastUpdated) {
			return outcomeCached, nil
		}
	}

	asset, err := p.source.GetAsset(ctx, t, summary.ID)
	if err != nil {
		return 0, fmt.Errorf("fetch detail: %w", err)
	}
	if asset.Name == "" {
		asset.Name = summary.Name
	}
	if asset.LastModified.IsZero() {
		asset.LastModified = summary.LastUpdated
	}

	perms, err := p.source.GetPermissions(ctx, t, summary.ID)
	if err != nil && !domain.IsNotFound(err) {
		return 0, fmt.Errorf("fetch permissions: %w", err)
	}
	asset.Permissions = perms

	tags, err := p.source.GetTags(ctx, t, summary.ID)
	if err != nil && !domain.IsNotFound(err) {
		return 0, fmt.Errorf("fetch tags: %w", err)
	}
	asset.Tags = tags

	asset.LastExported = p.now()
	if err := p.repo.Save(ctx, asset); err != nil {
		return 0, fmt.Errorf("persist asset: %w", err)
	}
	return outcomeUpdated, nil
}

// errorType buckets an error for structured progress records.
func errorType(err error) string {
	switch {
	case domain.IsRetryable(err):
		return "transient"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "permanent"
	}
}
