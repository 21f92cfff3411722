// Package savedsearch turns stored saved searches into index queries and
// implements explicit, user-triggered execution.
package savedsearch

import (
	"fmt"

	"naijaedu/alerts-service/internal/filter"
	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/search"
)

// Indexes maps each entity kind to its search index name.
type Indexes map[model.EntityKind]string

// BuildRequest parses and translates the stored filters of ss into a search
// request. Failures wrap filter.ErrTranslation.
func BuildRequest(ss model.SavedSearch, indexes Indexes, limit int) (search.Request, error) {
	set, err := filter.Parse(ss.Filters)
	if err != nil {
		return search.Request{}, err
	}
	expr, err := filter.Translate(ss.Kind, set)
	if err != nil {
		return search.Request{}, err
	}
	index, ok := indexes[ss.Kind]
	if !ok || index == "" {
		return search.Request{}, fmt.Errorf("%w %q: no index configured", filter.ErrUnknownKind, ss.Kind)
	}
	return search.Request{
		Index:       index,
		Query:       ss.Query,
		Filter:      expr,
		Limit:       limit,
		NewestFirst: true,
	}, nil
}
