package savedsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/filter"
	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/search"
	"naijaedu/alerts-service/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrNotFound is returned when the saved search does not exist, was deleted,
// or belongs to someone else.
var ErrNotFound = errors.New("saved search not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Store is the persistence the service needs.
type Store interface {
	GetSavedSearch(ctx context.Context, userID, id string) (*model.SavedSearch, error)
	RecordExecution(ctx context.Context, id string, at time.Time) error
}

// Searcher runs index queries.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// Service runs saved searches on behalf of their owners.
type Service struct {
	store    Store
	index    Searcher
	indexes  Indexes
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// NewService returns a Service. pageSize <= 0 uses DefaultLimit.
func NewService(st Store, index Searcher, indexes Indexes, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultLimit
	}
	return &Service{
		store:    st,
		index:    index,
		indexes:  indexes,
		pageSize: min(pageSize, MaxLimit),
		logger:   logger.Named("savedsearch"),
		now:      time.Now,
	}
}

// Execute runs the saved search id for userID and bumps its execution
// counter. limit <= 0 uses the configured page size; it is capped at MaxLimit.
// The watermark is never touched here.
func (s *Service) Execute(ctx context.Context, userID, id string, limit int) (*search.Result, error) {
	ss, err := s.store.GetSavedSearch(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load saved search: %w", err)
	}

	if limit <= 0 {
		limit = s.pageSize
	}
	req, err := BuildRequest(*ss, s.indexes, min(limit, MaxLimit))
	if errors.Is(err, filter.ErrTranslation) {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if err != nil {
		return nil, err
	}

	res, err := s.index.Search(ctx, req)
	var se *search.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
		// the index rejected the filter, e.g. an attribute that is not filterable
		return nil, &ValidationError{Msg: se.Body}
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if err := s.store.RecordExecution(ctx, ss.ID, s.now().UTC()); err != nil {
		// results are still useful to the caller
		s.logger.Warn("record execution failed", zap.String("savedSearchId", ss.ID), zap.Error(err))
	}
	return res, nil
}
