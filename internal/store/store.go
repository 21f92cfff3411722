// Package store is the PostgreSQL gateway for the rows the alert engine
// reads and writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"naijaedu/alerts-service/internal/model"
)

var (
	// ErrNotFound is returned when a row is missing, deleted, or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrWatermarkConflict is returned when last_notified_at changed since it was read.
	ErrWatermarkConflict = errors.New("watermark changed concurrently")
)

// Store wraps a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const savedSearchColumns = `
	id::text, user_id::text, name, search_type, COALESCE(query, ''), COALESCE(filters, '{}'::jsonb),
	notify_on_new_results, last_notified_at, execution_count, last_executed_at,
	created_at, updated_at, deleted_at`

func scanSavedSearch(row pgx.Row) (model.SavedSearch, error) {
	var s model.SavedSearch
	var kind string
	var filters []byte
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &kind, &s.Query, &filters,
		&s.NotifyOnNewResults, &s.LastNotifiedAt, &s.ExecutionCount, &s.LastExecutedAt,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	s.Kind = model.EntityKind(kind)
	s.Filters = filters
	return s, err
}

// ListActiveNotifiableSavedSearches returns every non-deleted saved search
// with notifications switched on.
func (s *Store) ListActiveNotifiableSavedSearches(ctx context.Context) ([]model.SavedSearch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+savedSearchColumns+`
		 FROM saved_searches
		 WHERE deleted_at IS NULL
		   AND notify_on_new_results = true
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query saved_searches: %w", err)
	}
	defer rows.Close()

	var out []model.SavedSearch
	for rows.Next() {
		ss, err := scanSavedSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// GetSavedSearch returns a non-deleted saved search owned by userID.
func (s *Store) GetSavedSearch(ctx context.Context, userID, id string) (*model.SavedSearch, error) {
	ss, err := scanSavedSearch(s.pool.QueryRow(ctx,
		`SELECT `+savedSearchColumns+`
		 FROM saved_searches
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		id, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getSavedSearch: %w", err)
	}
	return &ss, nil
}

// UpdateWatermark advances last_notified_at to next, but only if it still
// equals prev (compare-and-swap). A nil prev matches a NULL column.
func (s *Store) UpdateWatermark(ctx context.Context, id string, prev *time.Time, next time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_searches
		 SET last_notified_at = $2,
		     updated_at       = NOW()
		 WHERE id = $1
		   AND deleted_at IS NULL
		   AND last_notified_at IS NOT DISTINCT FROM $3`,
		id, next, prev,
	)
	if err != nil {
		return fmt.Errorf("updateWatermark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWatermarkConflict
	}
	return nil
}

// RecordExecution bumps the explicit-run counters of a saved search.
func (s *Store) RecordExecution(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE saved_searches
		 SET execution_count  = execution_count + 1,
		     last_executed_at = $2,
		     updated_at       = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("recordExecution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser returns the profile used to address alerts.
func (s *Store) GetUser(ctx context.Context, id string) (*model.UserProfile, error) {
	var u model.UserProfile
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, COALESCE(email, ''), COALESCE(full_name, '')
		 FROM user_profiles
		 WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getUser: %w", err)
	}
	return &u, nil
}

// ListProgramsWithDeadlineIn returns active programs whose application
// deadline falls inside [from, to].
func (s *Store) ListProgramsWithDeadlineIn(ctx context.Context, from, to time.Time) ([]model.Program, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id::text, p.institution_id::text, i.name, p.name, p.application_deadline
		 FROM programs p
		 LEFT JOIN institutions i ON i.id = p.institution_id
		 WHERE p.is_active = true
		   AND p.application_deadline IS NOT NULL
		   AND p.application_deadline >= $1
		   AND p.application_deadline <= $2
		 ORDER BY p.application_deadline`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	var out []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.InstitutionID, &p.InstitutionName, &p.Name, &p.ApplicationDeadline); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListBookmarkOwners returns the distinct users who bookmarked an entity.
func (s *Store) ListBookmarkOwners(ctx context.Context, entityType, entityID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id::text
		 FROM bookmarks
		 WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
