// Package alerts implements the background alert engine: saved-search delta
// notifications and the application-deadline cascade.
//
// A saved search moves through Idle → Checking → {NoChange | Notifying} → Idle
// on every orchestrator pass. Nothing is persisted for that cycle except the
// watermark (last_notified_at), which only advances after a successful send.
package alerts

import (
	"context"
	"errors"
	"time"

	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/search"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

var (
	// ErrIndexQuery wraps search index failures during delta detection.
	ErrIndexQuery = errors.New("search index query failed")

	// ErrRecipientUnresolvable is returned when the user or their email is missing.
	ErrRecipientUnresolvable = errors.New("recipient unresolvable")

	// ErrTransientDispatch wraps notifier failures; the item is retried next run.
	ErrTransientDispatch = errors.New("notification dispatch failed")

	// ErrInstitutionUnresolved is returned when a program's institution name is unknown.
	ErrInstitutionUnresolved = errors.New("institution name unresolved")

	// ErrInvalidWindow is returned for a deadline window outside 1..30 days.
	ErrInvalidWindow = errors.New("days_before must be between 1 and 30")
)

// ─── Collaborators ───────────────────────────────────────────────────────────

// Index runs search queries.
type Index interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// SavedSearchLister lists the saved searches eligible for a pass.
type SavedSearchLister interface {
	ListActiveNotifiableSavedSearches(ctx context.Context) ([]model.SavedSearch, error)
}

// WatermarkStore advances last_notified_at with compare-and-swap semantics.
type WatermarkStore interface {
	UpdateWatermark(ctx context.Context, id string, prev *time.Time, next time.Time) error
}

// UserStore resolves alert recipients.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.UserProfile, error)
}

// DeadlineStore supplies the deadline cascade.
type DeadlineStore interface {
	ListProgramsWithDeadlineIn(ctx context.Context, from, to time.Time) ([]model.Program, error)
	ListBookmarkOwners(ctx context.Context, entityType, entityID string) ([]string, error)
}

// Locker hands out per-key advisory locks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// ─── Per-item outcome ────────────────────────────────────────────────────────

// Outcome is the result of processing one work item.
type Outcome int

const (
	OutcomeNoChange Outcome = iota
	OutcomeSent
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no_change"
	case OutcomeSent:
		return "sent"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Options tunes the worker pool shared by the orchestrator and the cascade.
type Options struct {
	Workers     int           // concurrent items; also caps outbound requests
	ItemTimeout time.Duration // per item, independent of the run deadline
	LockTTL     time.Duration // advisory lock lifetime per saved search
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:     4,
		ItemTimeout: time.Minute,
		LockTTL:     2 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Workers < 1 {
		o.Workers = d.Workers
	}
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = d.ItemTimeout
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 2 * o.ItemTimeout
	}
	return o
}
