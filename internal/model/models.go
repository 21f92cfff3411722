// Package model defines shared data structures for the alerts service.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EntityKind selects which search index a SavedSearch targets.
type EntityKind string

const (
	KindPrograms     EntityKind = "programs"
	KindInstitutions EntityKind = "institutions"
)

// SavedSearch mirrors the saved_searches table row relevant to alerting.
type SavedSearch struct {
	ID                 string
	OwnerID            string
	Name               string
	Kind               EntityKind
	Query              string
	Filters            json.RawMessage // JSONB, decoded by filter.Parse
	NotifyOnNewResults bool
	LastNotifiedAt     *time.Time // watermark; nil until the first successful alert
	ExecutionCount     int
	LastExecutedAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// Watermark is the boundary between already-notified and new results.
// A search that has never notified uses its own creation time, so the
// initial match set is never mailed out.
func (s SavedSearch) Watermark() time.Time {
	if s.LastNotifiedAt != nil {
		return *s.LastNotifiedAt
	}
	return s.CreatedAt
}

// Program is a programme row with its application deadline.
type Program struct {
	ID                  string
	InstitutionID       string
	InstitutionName     *string // nil when the institution row is missing
	Name                string
	ApplicationDeadline time.Time
}

// Bookmark links a user to a program or institution.
type Bookmark struct {
	UserID     string
	EntityType string
	EntityID   string
}

// UserProfile holds the fields needed to address an email.
type UserProfile struct {
	ID       string
	Email    string
	FullName string
}

// IndexHit is a single search index document as returned by a query.
type IndexHit struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	InstitutionName string    `json:"institution_name,omitempty"`
	State           string    `json:"state,omitempty"`
	CreatedAt       Timestamp `json:"created_at"`
}

// Timestamp decodes either an RFC3339 string or unix seconds, which is how
// documents end up in the index depending on which importer wrote them.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", b, err)
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	t.Time = time.Unix(sec, nsec).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// NotificationMessage is handed to a Notifier; never persisted.
type NotificationMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// RunSummary is the outcome of one saved-search pass.
type RunSummary struct {
	Checked   int           `json:"checked"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Partial   bool          `json:"partial"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// DeadlineSummary is the outcome of one deadline cascade.
type DeadlineSummary struct {
	Programs  int           `json:"programs"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Partial   bool          `json:"partial"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}
