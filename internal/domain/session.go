package domain

import "time"

// Export session and progress status constants.
const (
	SessionStatusIdle      = "idle"
	SessionStatusRunning   = "running"
	SessionStatusCompleted = "completed"
	SessionStatusError     = "error"
	SessionStatusCancelled = "cancelled"

	ProgressStatusIdle      = "idle"
	ProgressStatusRunning   = "running"
	ProgressStatusCompleted = "completed"
	ProgressStatusError     = "error"
)

// ProgressKeyRebuild is the progress-map key for post-export index rebuilds,
// alongside the per-asset-type keys.
const ProgressKeyRebuild = "rebuild"

// StaleSessionCutoff is how old a persisted "running" session may be before
// startup force-closes it as errored.
const StaleSessionCutoff = time.Hour

// ExportError is one structured error recorded against a progress entry.
type ExportError struct {
	AssetID   string    `json:"assetId,omitempty"`
	AssetName string    `json:"assetName,omitempty"`
	Message   string    `json:"message"`
	ErrorType string    `json:"errorType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportStats summarizes how one asset type's export finished.
type ExportStats struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Cached  int `json:"cached"`
	Errors  int `json:"errors"`
}

// ExportProgress tracks one asset type (or the index rebuild) inside a session.
type ExportProgress struct {
	Status  string        `json:"status"`
	Current int           `json:"current"`
	Total   int           `json:"total"`
	Message string        `json:"message,omitempty"`
	Errors  []ExportError `json:"errors,omitempty"`
	Stats   *ExportStats  `json:"stats,omitempty"`
}

// SessionSummary is the optional final summary attached on completion.
type SessionSummary struct {
	TotalAssets   int      `json:"totalAssets"`
	TotalUpdated  int      `json:"totalUpdated"`
	TotalCached   int      `json:"totalCached"`
	TotalErrors   int      `json:"totalErrors"`
	SkippedTypes  []string `json:"skippedTypes,omitempty"`
	DurationHuman string   `json:"duration,omitempty"`
}

// ExportSession is one bulk export run. Persisted at sessions/{id}.json after
// every significant mutation; at most one session is current in orchestrator
// memory at a time.
type ExportSession struct {
	ID        string                     `json:"id"`
	Status    string                     `json:"status"`
	Progress  map[string]*ExportProgress `json:"progress"`
	StartedAt time.Time                  `json:"startedAt"`
	EndedAt   *time.Time                 `json:"endedAt,omitempty"`
	UpdatedAt time.Time                  `json:"updatedAt"`
	Summary   *SessionSummary            `json:"summary,omitempty"`
}

// IsTerminal reports whether the session has reached a final status.
func (s *ExportSession) IsTerminal() bool {
	switch s.Status {
	case SessionStatusCompleted, SessionStatusError, SessionStatusCancelled:
		return true
	}
	return false
}

// IsStale reports whether a "running" session has not been updated within the
// staleness cutoff, relative to now.
func (s *ExportSession) IsStale(now time.Time) bool {
	return s.Status == SessionStatusRunning && now.Sub(s.UpdatedAt) > StaleSessionCutoff
}

// ProgressTerminal reports whether one progress status is final.
func ProgressTerminal(status string) bool {
	return status == ProgressStatusCompleted || status == ProgressStatusError
}
