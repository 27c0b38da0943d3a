package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
)

// cancelGraceDelay gives the durable store time to reach read-after-write
// consistency before a caller issues the next read after a cancel.
const cancelGraceDelay = 500 * time.Millisecond

// IndexRebuilder abstracts the post-export index rebuild.
type IndexRebuilder interface {
	Rebuild(ctx context.Context) (*domain.AssetIndex, error)
}

// Orchestrator owns the export-session state machine. All session mutation
// funnels through its mutex; handlers and processors only ever hold the
// session id or a cloned snapshot, never the live struct.
type Orchestrator struct {
	store   domain.BlobStore
	proc    *Processor
	indexer IndexRebuilder
	ckpt    *checkpointWriter
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	current    *domain.ExportSession
	completing bool
}

// NewOrchestrator creates the orchestrator and starts its checkpoint writer.
func NewOrchestrator(store domain.BlobStore, proc *Processor, indexer IndexRebuilder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		proc:    proc,
		indexer: indexer,
		ckpt:    newCheckpointWriter(store, logger.With("component", "checkpoint")),
		logger:  logger,
		now:     time.Now,
	}
}

// Close drains and stops the checkpoint writer.
func (o *Orchestrator) Close() {
	o.ckpt.Close()
}

// Restore inspects persisted sessions at startup. A session still marked
// running is adopted as current when fresh, or force-closed to error when its
// last update is older than the staleness cutoff.
func (o *Orchestrator) Restore(ctx context.Context) error {
	objects, err := o.store.List(ctx, blob.SessionPrefix)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	var adopted *domain.ExportSession
	for _, obj := range objects {
		var sess domain.ExportSession
		if err := blob.GetJSON(ctx, o.store, obj.Key, &sess); err != nil {
			o.logger.Warn("skipping unreadable session blob", "key", obj.Key, "error", err)
			continue
		}
		if sess.Status != domain.SessionStatusRunning {
			continue
		}

		if sess.IsStale(o.now()) {
			o.healStale(ctx, &sess)
			continue
		}
		if adopted == nil || sess.StartedAt.After(adopted.StartedAt) {
			adopted = &sess
		}
	}

	if adopted != nil {
		o.mu.Lock()
		o.current = adopted
		o.mu.Unlock()
		o.logger.Info("adopted running session from previous process", "session", adopted.ID)
	}
	return nil
}

// healStale force-closes a stale running session as errored.
func (o *Orchestrator) healStale(ctx context.Context, sess *domain.ExportSession) {
	now := o.now()
	age := now.Sub(sess.UpdatedAt)
	for _, p := range sess.Progress {
		if !domain.ProgressTerminal(p.Status) {
			p.Status = domain.ProgressStatusError
			p.Message = "session stale at startup"
		}
	}
	sess.Status = domain.SessionStatusError
	sess.EndedAt = &now
	sess.UpdatedAt = now
	if err := o.ckpt.Sync(ctx, sess); err != nil {
		o.logger.Error("persisting healed session failed", "session", sess.ID, "error", err)
	} else {
		o.logger.Warn("force-closed stale session", "session", sess.ID, "age", age)
	}
}

// StartSession allocates a new session covering the requested asset types (or
// all four when none are given). A still-active previous session is cancelled
// first.
func (o *Orchestrator) StartSession(ctx context.Context, types []domain.AssetType) (string, error) {
	if len(types) == 0 {
		types = domain.AllAssetTypes
	}

	o.mu.Lock()
	if o.current != nil && !o.current.IsTerminal() {
		snapshot := o.cancelLocked("cancelled by user")
		o.mu.Unlock()
		if err := o.ckpt.Sync(ctx, snapshot); err != nil {
			o.logger.Error("persisting cancelled session failed", "session", snapshot.ID, "error", err)
		}
		o.mu.Lock()
	}

	now := o.now()
	sess := &domain.ExportSession{
		ID:        domain.NewSessionID(now),
		Status:    domain.SessionStatusIdle,
		Progress:  make(map[string]*domain.ExportProgress, len(types)),
		StartedAt: now,
		UpdatedAt: now,
	}
	for _, t := range types {
		sess.Progress[string(t)] = &domain.ExportProgress{Status: domain.ProgressStatusIdle}
	}
	o.current = sess
	snapshot := cloneSession(sess)
	o.mu.Unlock()

	if err := o.ckpt.Sync(ctx, snapshot); err != nil {
		return "", fmt.Errorf("persist new session: %w", err)
	}
	o.logger.Info("export session started", "session", snapshot.ID, "types", types)
	return snapshot.ID, nil
}

// ExportAssetType runs one asset type's export against the current session,
// then checks whether the session can complete. The per-type progress entry
// is created on demand for progressive multi-endpoint exports.
func (o *Orchestrator) ExportAssetType(ctx context.Context, t domain.AssetType, forceRefresh bool) error {
	err := o.exportType(ctx, t, forceRefresh)
	o.CheckAndCompleteSession(ctx)
	return err
}

// exportType runs one type without the completion check, so a sequential
// full export is not completed out from under the remaining types.
func (o *Orchestrator) exportType(ctx context.Context, t domain.AssetType, forceRefresh bool) error {
	o.mu.Lock()
	if o.current == nil || o.current.IsTerminal() {
		o.mu.Unlock()
		return domain.ErrConflict("no active export session")
	}
	key := string(t)
	sessionID := o.current.ID
	p, ok := o.current.Progress[key]
	if !ok {
		p = &domain.ExportProgress{}
		o.current.Progress[key] = p
	}
	if p.Status == domain.ProgressStatusRunning {
		o.mu.Unlock()
		return domain.ErrConflict("%s export already running", t)
	}
	p.Status = domain.ProgressStatusRunning
	p.Message = "starting"
	o.current.Status = domain.SessionStatusRunning
	o.touchLocked()
	sink := &progressSink{o: o, key: key, session: sessionID}
	snapshot := cloneSession(o.current)
	o.mu.Unlock()

	if err := o.ckpt.Sync(ctx, snapshot); err != nil {
		o.logger.Warn("persisting session at type start failed", "session", snapshot.ID, "error", err)
	}

	stats, err := o.proc.Export(ctx, t, forceRefresh, sink)

	// The session may have been cancelled or replaced while the processor was
	// running; results from the finished export must not touch its successor.
	o.mu.Lock()
	if o.current == nil || o.current.ID != sessionID {
		o.mu.Unlock()
		o.logger.Warn("session no longer active, dropping export result", "session", sessionID, "type", t)
		return err
	}
	if p, ok := o.current.Progress[key]; ok && !domain.ProgressTerminal(p.Status) {
		if err != nil {
			p.Status = domain.ProgressStatusError
			p.Message = err.Error()
		} else {
			p.Status = domain.ProgressStatusCompleted
			p.Stats = stats
			p.Message = fmt.Sprintf("%d total, %d updated, %d cached, %d errors",
				stats.Total, stats.Updated, stats.Cached, stats.Errors)
		}
	}
	o.touchLocked()
	snapshot = cloneSession(o.current)
	o.mu.Unlock()

	if serr := o.ckpt.Sync(ctx, snapshot); serr != nil {
		o.logger.Error("persisting session after type export failed", "session", snapshot.ID, "error", serr)
	}
	return err
}

// ExportAll starts a fresh session (cancelling any active one) and runs all
// four asset types sequentially, bounding total provider load to one type's
// worker pool at a time. The index is rebuilt under the "rebuild" progress
// key before completion; rebuild failure does not fail the export.
func (o *Orchestrator) ExportAll(ctx context.Context, forceRefresh bool) (string, error) {
	id, err := o.StartSession(ctx, domain.AllAssetTypes)
	if err != nil {
		return "", err
	}
	o.runAll(ctx, id, forceRefresh)
	return id, nil
}

// ExportAllAsync starts a full-export session and runs it in the background,
// returning the session id immediately. Progress is observable through the
// session endpoints.
func (o *Orchestrator) ExportAllAsync(ctx context.Context, forceRefresh bool) (string, error) {
	id, err := o.StartSession(ctx, domain.AllAssetTypes)
	if err != nil {
		return "", err
	}
	go o.runAll(context.Background(), id, forceRefresh)
	return id, nil
}

func (o *Orchestrator) runAll(ctx context.Context, id string, forceRefresh bool) {
	for _, t := range domain.AllAssetTypes {
		if o.sessionGone(id) {
			o.logger.Warn("session no longer active, stopping full export", "session", id)
			return
		}
		if err := o.exportType(ctx, t, forceRefresh); err != nil {
			o.logger.Error("asset type export failed", "session", id, "type", t, "error", err)
		}
	}

	o.rebuildIndexTracked(ctx, id)
	o.CheckAndCompleteSession(ctx)
}

// sessionGone reports whether id is no longer the active session.
func (o *Orchestrator) sessionGone(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current == nil || o.current.ID != id || o.current.IsTerminal()
}

// rebuildIndexTracked runs an index rebuild recorded under the "rebuild"
// progress key of the given session. Failures mark the entry errored but are
// otherwise swallowed.
func (o *Orchestrator) rebuildIndexTracked(ctx context.Context, id string) {
	o.mu.Lock()
	if o.current == nil || o.current.ID != id {
		o.mu.Unlock()
		return
	}
	o.current.Progress[domain.ProgressKeyRebuild] = &domain.ExportProgress{
		Status:  domain.ProgressStatusRunning,
		Message: "rebuilding asset index",
	}
	o.touchLocked()
	o.mu.Unlock()

	ix, err := o.indexer.Rebuild(ctx)

	o.mu.Lock()
	if o.current == nil || o.current.ID != id {
		o.mu.Unlock()
		o.logger.Warn("session no longer active, dropping index rebuild result", "session", id)
		return
	}
	if p, ok := o.current.Progress[domain.ProgressKeyRebuild]; ok {
		if err != nil {
			p.Status = domain.ProgressStatusError
			p.Message = err.Error()
			o.logger.Error("index rebuild failed", "session", id, "error", err)
		} else {
			p.Status = domain.ProgressStatusCompleted
			p.Current = ix.Count()
			p.Total = ix.Count()
			p.Message = fmt.Sprintf("indexed %d assets", ix.Count())
		}
	}
	o.touchLocked()
	snapshot := cloneSession(o.current)
	o.mu.Unlock()

	o.ckpt.Enqueue(snapshot)
}

// CheckAndCompleteSession completes the current session once no progress
// entries remain running and at least one reached completed. A re-entrancy
// flag keeps progressive per-type exports from double-completing under
// concurrent callers.
func (o *Orchestrator) CheckAndCompleteSession(ctx context.Context) {
	o.mu.Lock()
	if o.completing || o.current == nil || o.current.IsTerminal() {
		o.mu.Unlock()
		return
	}
	o.completing = true
	defer func() {
		o.mu.Lock()
		o.completing = false
		o.mu.Unlock()
	}()

	anyCompleted := false
	for _, p := range o.current.Progress {
		if p.Status == domain.ProgressStatusRunning {
			o.mu.Unlock()
			return
		}
		if p.Status == domain.ProgressStatusCompleted {
			anyCompleted = true
		}
	}
	if !anyCompleted {
		o.mu.Unlock()
		return
	}

	o.completeLocked()
	hadRebuild := o.current.Progress[domain.ProgressKeyRebuild] != nil
	snapshot := cloneSession(o.current)
	o.mu.Unlock()

	if err := o.ckpt.Sync(ctx, snapshot); err != nil {
		o.logger.Error("persisting completed session failed", "session", snapshot.ID, "error", err)
	}
	o.logger.Info("export session completed", "session", snapshot.ID)

	// Post-completion index rebuild is best-effort and asynchronous; a
	// failure here must not fail the export.
	if !hadRebuild {
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := o.indexer.Rebuild(rctx); err != nil {
				o.logger.Error("post-export index rebuild failed", "session", snapshot.ID, "error", err)
			}
		}()
	}
}

// completeLocked transitions the current session to completed and attaches
// the aggregate summary. Caller holds o.mu.
func (o *Orchestrator) completeLocked() {
	now := o.now()
	summary := &domain.SessionSummary{}
	for key, p := range o.current.Progress {
		if key == domain.ProgressKeyRebuild {
			continue
		}
		if p.Status == domain.ProgressStatusIdle {
			summary.SkippedTypes = append(summary.SkippedTypes, key)
		}
		if p.Stats != nil {
			summary.TotalAssets += p.Stats.Total
			summary.TotalUpdated += p.Stats.Updated
			summary.TotalCached += p.Stats.Cached
			summary.TotalErrors += p.Stats.Errors
		}
	}
	sort.Strings(summary.SkippedTypes)
	summary.DurationHuman = now.Sub(o.current.StartedAt).Round(time.Second).String()

	o.current.Status = domain.SessionStatusCompleted
	o.current.Summary = summary
	o.current.EndedAt = &now
	o.current.UpdatedAt = now
}

// CancelSession cancels the current session: every non-terminal progress
// entry is errored with a cancellation message, the session is persisted as
// cancelled, and the in-memory reference is cleared after a short grace delay
// so the durable store settles before the next read.
func (o *Orchestrator) CancelSession(ctx context.Context) error {
	o.mu.Lock()
	if o.current == nil || o.current.IsTerminal() {
		o.mu.Unlock()
		return domain.ErrNotFound("no active export session")
	}
	snapshot := o.cancelLocked("cancelled by user")
	o.mu.Unlock()

	if err := o.ckpt.Sync(ctx, snapshot); err != nil {
		return fmt.Errorf("persist cancelled session: %w", err)
	}

	_ = sleepCtx(ctx, cancelGraceDelay)
	o.logger.Info("export session cancelled", "session", snapshot.ID)
	return nil
}

// cancelLocked marks the current session cancelled, clears the in-memory
// reference, and returns a snapshot for persistence. Caller holds o.mu.
func (o *Orchestrator) cancelLocked(message string) *domain.ExportSession {
	now := o.now()
	for _, p := range o.current.Progress {
		if !domain.ProgressTerminal(p.Status) {
			p.Status = domain.ProgressStatusError
			p.Message = message
		}
	}
	o.current.Status = domain.SessionStatusCancelled
	o.current.EndedAt = &now
	o.current.UpdatedAt = now

	snapshot := cloneSession(o.current)
	o.current = nil
	return snapshot
}

// CurrentSession returns a snapshot of the in-memory session, or nil.
func (o *Orchestrator) CurrentSession() *domain.ExportSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	return cloneSession(o.current)
}

// GetSession loads one session record by id, preferring the in-memory
// session when the id matches.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*domain.ExportSession, error) {
	o.mu.Lock()
	if o.current != nil && o.current.ID == id {
		snapshot := cloneSession(o.current)
		o.mu.Unlock()
		return snapshot, nil
	}
	o.mu.Unlock()

	var sess domain.ExportSession
	if err := blob.GetJSON(ctx, o.store, blob.SessionKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns every persisted session, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]domain.ExportSession, error) {
	objects, err := o.store.List(ctx, blob.SessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]domain.ExportSession, 0, len(objects))
	for _, obj := range objects {
		var sess domain.ExportSession
		if err := blob.GetJSON(ctx, o.store, obj.Key, &sess); err != nil {
			o.logger.Warn("skipping unreadable session blob", "key", obj.Key, "error", err)
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// touchLocked bumps the session's UpdatedAt. Caller holds o.mu.
func (o *Orchestrator) touchLocked() {
	o.current.UpdatedAt = o.now()
}

// cloneSession deep-copies a session so snapshots can leave the lock.
func cloneSession(s *domain.ExportSession) *domain.ExportSession {
	out := *s
	out.Progress = make(map[string]*domain.ExportProgress, len(s.Progress))
	for k, p := range s.Progress {
		cp := *p
		cp.Errors = append([]domain.ExportError(nil), p.Errors...)
		if p.Stats != nil {
			st := *p.Stats
			cp.Stats = &st
		}
		out.Progress[k] = &cp
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.SkippedTypes = append([]string(nil), s.Summary.SkippedTypes...)
		out.Summary = &sum
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// progressSink binds a processor to one progress entry of one session. Every
// write re-checks that its session is still the current one, so an export
// outliving a cancel or restart cannot leak progress into a successor
// session. All mutation happens under the orchestrator mutex.
type progressSink struct {
	o       *Orchestrator
	key     string
	session string
}

var _ ProgressSink = (*progressSink)(nil)

func (s *progressSink) withProgress(fn func(p *domain.ExportProgress)) {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	if s.o.current == nil || s.o.current.ID != s.session {
		return
	}
	p, ok := s.o.current.Progress[s.key]
	if !ok {
		return
	}
	fn(p)
	s.o.touchLocked()
}

func (s *progressSink) Update(current, total int, message string) {
	s.withProgress(func(p *domain.ExportProgress) {
		p.Current = current
		if total > 0 {
			p.Total = total
		}
		p.Message = message
	})
}

func (s *progressSink) RecordError(e domain.ExportError) {
	s.withProgress(func(p *domain.ExportProgress) {
		p.Errors = append(p.Errors, e)
	})
}

func (s *progressSink) Checkpoint() {
	s.o.mu.Lock()
	if s.o.current == nil || s.o.current.ID != s.session {
		s.o.mu.Unlock()
		return
	}
	snapshot := cloneSession(s.o.current)
	s.o.mu.Unlock()
	s.o.ckpt.Enqueue(snapshot)
}

func (s *progressSink) Cancelled() bool {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	return s.o.current == nil || s.o.current.ID != s.session || s.o.current.IsTerminal()
}
