// Package webapi fetches overlay data from the web map endpoints.
package webapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"github.com/joeblew999/plat-map/internal/feature"
)

const (
	// DefaultUserAgent is sent when Options.UserAgent is empty.
	DefaultUserAgent = "plat-map/0.1.0"

	// DefaultMapLimit caps the elements requested per map data fetch.
	DefaultMapLimit = 10_000

	MapPath  = "/api/web/map"
	NotePath = "/api/web/note/map"

	maxErrorBody = 4 << 10
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// Client talks to the /api/web data endpoints.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	UserAgent string

	limiter *rate.Limiter
	logger  *slog.Logger
}

// New returns a client. A zero RequestsPerSecond disables rate limiting.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	return &Client{
		BaseURL: strings.TrimRight(opts.BaseURL, "/"),
		HTTP: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: opts.Timeout,
		},
		UserAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		logger:    opts.Logger,
	}
}

// FormatBBox renders b as "minLon,minLat,maxLon,maxLat".
func FormatBBox(b orb.Bound) string {
	parts := [4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	s := make([]string, len(parts))
	for i, v := range parts {
		s[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(s, ",")
}

// Map fetches nodes and ways inside b.
func (c *Client) Map(ctx context.Context, b orb.Bound, limit int) (feature.Collection, error) {
	q := url.Values{"bbox": {FormatBBox(b)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.get(ctx, MapPath, q)
	if err != nil {
		return feature.Collection{}, err
	}
	return feature.UnmarshalElements(body)
}

// Notes fetches the notes inside b.
func (c *Client) Notes(ctx context.Context, b orb.Bound) (feature.Collection, error) {
	body, err := c.get(ctx, NotePath, url.Values{"bbox": {FormatBBox(b)}})
	if err != nil {
		return feature.Collection{}, err
	}
	return feature.UnmarshalNotes(body)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// Bounding boxes change with every pan.
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", feature.ContentType)
	req.Header.Set("User-Agent", c.UserAgent)

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.Debug("fetched overlay data", "path", path, "bbox", q.Get("bbox"), "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

// MapSource fetches map data for an overlay.
type MapSource struct {
	Client *Client
	Limit  int
}

func (s MapSource) Fetch(ctx context.Context, b orb.Bound) (feature.Collection, error) {
	limit := s.Limit
	if limit == 0 {
		limit = DefaultMapLimit
	}
	return s.Client.Map(ctx, b, limit)
}

// NoteSource fetches notes for an overlay.
type NoteSource struct {
	Client *Client
}

func (s NoteSource) Fetch(ctx context.Context, b orb.Bound) (feature.Collection, error) {
	return s.Client.Notes(ctx, b)
}
