package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naijaedu/alerts-service/internal/filter"
	"naijaedu/alerts-service/internal/model"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDetect_UsesCreatedAtWhenNeverNotified(t *testing.T) {
	idx := newFakeIndex()
	idx.byQuery["computer science"] = []model.IndexHit{
		hit("old", t0.Add(-time.Minute)),
		hit("a", t0.Add(time.Minute)),
		hit("b", t0.Add(2*time.Minute)),
	}
	d := NewDetector(idx, testIndexes, 0)

	res, err := d.Detect(context.Background(), model.SavedSearch{
		ID: "ss-1", Kind: model.KindPrograms, Query: "computer science", CreatedAt: t0,
	})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "b", res.Hits[0].ID, "newest first")
	assert.Equal(t, "a", res.Hits[1].ID)
	assert.Equal(t, t0, res.Watermark)
	assert.Equal(t, 3, res.Total)
	assert.True(t, res.Newest().Equal(t0.Add(2*time.Minute)))
}

func TestDetect_EqualTimestampIsNotNew(t *testing.T) {
	wm := t0.Add(time.Hour)
	idx := newFakeIndex()
	idx.byQuery["law"] = []model.IndexHit{hit("same", wm)}
	d := NewDetector(idx, testIndexes, 0)

	res, err := d.Detect(context.Background(), model.SavedSearch{
		ID: "ss-1", Kind: model.KindPrograms, Query: "law", CreatedAt: t0, LastNotifiedAt: &wm,
	})
	require.NoError(t, err)
	assert.False(t, res.HasNew())
	assert.True(t, res.Newest().IsZero())
}

func TestDetect_IndexFailureIsWrapped(t *testing.T) {
	idx := newFakeIndex()
	idx.fail["x"] = errors.New("connection refused")
	d := NewDetector(idx, testIndexes, 0)

	_, err := d.Detect(context.Background(), model.SavedSearch{ID: "ss-1", Kind: model.KindPrograms, Query: "x", CreatedAt: t0})
	assert.ErrorIs(t, err, ErrIndexQuery)
}

func TestDetect_BadFiltersFailBeforeQuerying(t *testing.T) {
	idx := newFakeIndex()
	d := NewDetector(idx, testIndexes, 0)

	_, err := d.Detect(context.Background(), model.SavedSearch{
		ID: "ss-1", Kind: model.KindInstitutions, CreatedAt: t0,
		Filters: []byte(`{"degree_type":["BSc"]}`),
	})
	assert.ErrorIs(t, err, filter.ErrTranslation)
	assert.Zero(t, idx.calls)
}
