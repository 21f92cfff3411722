// Package search is a thin client for the directory's search index
// (Meilisearch-compatible REST API).
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"naijaedu/alerts-service/internal/model"
)

const (
	httpTimeout   = 15 * time.Second
	maxErrorBody  = 2048
	defaultLimit  = 20
	createdAtDesc = "created_at:desc"
)

// ErrBadRequest is returned for requests rejected before they leave the process.
var ErrBadRequest = errors.New("invalid search request")

// StatusError reports a non-200 response from the index.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search index returned %d: %s", e.StatusCode, e.Body)
}

// Request is a single search query.
type Request struct {
	Index  string
	Query  string
	Filter string
	Limit  int
	// NewestFirst sorts by created_at descending so a bounded page always
	// holds the most recent documents.
	NewestFirst bool
}

// Result is the decoded search response.
type Result struct {
	Hits   []model.IndexHit `json:"hits"`
	Total  int              `json:"total"`
	TookMs int              `json:"tookMs"`
}

// Client queries the search index over HTTP. Outbound requests share one
// token bucket so concurrent workers stay under the index's rate limit.
type Client struct {
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	client  *http.Client
}

// NewClient constructs a Client. ratePerSec <= 0 disables throttling.
func NewClient(baseURL, apiKey string, ratePerSec float64) *Client {
	lim := rate.NewLimiter(rate.Inf, 0)
	if ratePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(ratePerSec), max(1, int(ratePerSec)))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limiter: lim,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// searchBody mirrors the Meilisearch search payload.
type searchBody struct {
	Q      string   `json:"q"`
	Filter string   `json:"filter,omitempty"`
	Limit  int      `json:"limit"`
	Sort   []string `json:"sort,omitempty"`
}

// searchResponse mirrors the Meilisearch search response. Older engines
// report estimatedTotalHits, exhaustive searches report totalHits.
type searchResponse struct {
	Hits               []model.IndexHit `json:"hits"`
	EstimatedTotalHits *int             `json:"estimatedTotalHits"`
	TotalHits          *int             `json:"totalHits"`
	ProcessingTimeMs   int              `json:"processingTimeMs"`
}

// Search runs req against the index.
func (c *Client) Search(ctx context.Context, req Request) (*Result, error) {
	if req.Index == "" {
		return nil, fmt.Errorf("%w: index is required", ErrBadRequest)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	body := searchBody{Q: req.Query, Filter: req.Filter, Limit: limit}
	if req.NewestFirst {
		body.Sort = []string{createdAtDesc}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/search", c.baseURL, url.PathEscape(req.Index))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var sr searchResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	res := &Result{Hits: sr.Hits, TookMs: sr.ProcessingTimeMs}
	switch {
	case sr.TotalHits != nil:
		res.Total = *sr.TotalHits
	case sr.EstimatedTotalHits != nil:
		res.Total = *sr.EstimatedTotalHits
	default:
		res.Total = len(sr.Hits)
	}
	if res.Hits == nil {
		res.Hits = []model.IndexHit{}
	}
	return res, nil
}
