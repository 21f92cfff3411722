package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/savedsearch"
)

// DefaultDetectPageSize bounds how many hits one detection reads.
const DefaultDetectPageSize = 100

// DeltaResult holds the hits newer than a saved search's watermark.
type DeltaResult struct {
	Hits      []model.IndexHit // newest first
	Watermark time.Time        // the boundary the hits were compared against
	Total     int              // total index matches, new or not
}

// HasNew reports whether any hit is newer than the watermark.
func (r DeltaResult) HasNew() bool { return len(r.Hits) > 0 }

// Newest returns the latest created_at among the new hits, or the zero time.
func (r DeltaResult) Newest() time.Time {
	var newest time.Time
	for _, h := range r.Hits {
		if h.CreatedAt.After(newest) {
			newest = h.CreatedAt.Time
		}
	}
	return newest
}

// Detector finds saved-search results newer than the watermark.
type Detector struct {
	index    Index
	indexes  savedsearch.Indexes
	pageSize int
}

// NewDetector returns a Detector. indexes maps each entity kind to its index
// name; pageSize <= 0 uses DefaultDetectPageSize.
func NewDetector(index Index, indexes savedsearch.Indexes, pageSize int) *Detector {
	if pageSize <= 0 {
		pageSize = DefaultDetectPageSize
	}
	return &Detector{index: index, indexes: indexes, pageSize: pageSize}
}

// Detect runs the stored query and keeps hits created strictly after the
// watermark. Equal timestamps are never new, so a retried read cannot
// re-notify the same document.
func (d *Detector) Detect(ctx context.Context, ss model.SavedSearch) (DeltaResult, error) {
	res := DeltaResult{Watermark: ss.Watermark()}

	req, err := savedsearch.BuildRequest(ss, d.indexes, d.pageSize)
	if err != nil {
		return res, err
	}

	out, err := d.index.Search(ctx, req)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrIndexQuery, err)
	}

	res.Total = out.Total
	for _, h := range out.Hits {
		if h.CreatedAt.After(res.Watermark) {
			res.Hits = append(res.Hits, h)
		}
	}
	sort.SliceStable(res.Hits, func(i, j int) bool {
		return res.Hits[i].CreatedAt.After(res.Hits[j].CreatedAt.Time)
	})
	return res, nil
}
