// Package datasource provides PagedDataSource implementations bound to a
// definition's fetch spec.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/query"
)

// DefaultTimeout applies when no client is supplied.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 512

// HTTPSource pulls pages from a paged-data endpoint with GET requests.
// It holds no per-request state and may be shared by concurrent callers.
type HTTPSource struct {
	spec    core.FetchSpec
	client  *http.Client
	base    *url.URL
	headers http.Header
	logger  *slog.Logger
}

// Option configures an HTTPSource.
type Option func(*HTTPSource)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) Option {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithBaseURL sets the URL relative fetch URLs are resolved against.
func WithBaseURL(base *url.URL) Option {
	return func(s *HTTPSource) {
		s.base = base
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(s *HTTPSource) {
		s.headers.Add(key, value)
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *HTTPSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHTTPSource creates a data source bound to spec, which is copied.
func NewHTTPSource(spec core.FetchSpec, opts ...Option) *HTTPSource {
	params := make(map[string]any, len(spec.Params))
	for k, v := range spec.Params {
		params[k] = v
	}
	s := &HTTPSource{
		spec:    core.FetchSpec{URL: spec.URL, Params: params},
		client:  &http.Client{Timeout: DefaultTimeout},
		headers: http.Header{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRows implements core.PagedDataSource.
func (s *HTTPSource) GetRows(ctx context.Context, q core.NormalizedQuery) (*core.PageResult, error) {
	target, err := s.resolve()
	if err != nil {
		return nil, &core.TransportError{URL: s.spec.URL, Cause: err}
	}

	values, err := query.Encode(q, s.spec.Params)
	if err != nil {
		return nil, &core.TransportError{URL: target.String(), Cause: err}
	}
	merged := target.Query()
	for k, v := range values {
		merged[k] = v
	}
	target.RawQuery = merged.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &core.TransportError{URL: target.String(), Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &core.TransportError{URL: target.String(), Cause: err}
	}
	defer resp.Body.Close()

	s.logger.Debug("fetched page",
		"url", target.Redacted(),
		"status", resp.StatusCode,
		"offset", q.Offset,
		"limit", q.Limit,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &core.TransportError{
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("%s: %s", resp.Status, body),
		}
	}

	page, err := decodePage(resp.Body)
	if err != nil {
		return nil, &core.TransportError{URL: target.String(), Cause: err}
	}
	return page, nil
}

func (s *HTTPSource) resolve() (*url.URL, error) {
	u, err := url.Parse(s.spec.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.IsAbs() {
		return u, nil
	}
	if s.base == nil {
		return nil, errors.New("relative url requires a base url")
	}
	return s.base.ResolveReference(u), nil
}

type pageBody struct {
	Data  *[]map[string]any `json:"data"`
	Count int64             `json:"count"`
}

func decodePage(r io.Reader) (*core.PageResult, error) {
	var body pageBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	if body.Data == nil {
		return nil, errors.New("response has no data field")
	}
	return &core.PageResult{Rows: *body.Data, Count: body.Count}, nil
}

// FetchDefinition retrieves a serialized definition document, such as one
// served by the definitions API, and validates it.
func FetchDefinition(ctx context.Context, client *http.Client, rawURL string) (*core.SerializedTableDefinition, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &core.TransportError{URL: rawURL, Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &core.TransportError{URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &core.TransportError{URL: rawURL, StatusCode: resp.StatusCode, Cause: fmt.Errorf("%s: %s", resp.Status, body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.TransportError{URL: rawURL, Cause: fmt.Errorf("failed to read body: %w", err)}
	}
	return core.ParseDefinition(data)
}
