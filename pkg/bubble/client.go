// Package bubble fetches company records from a Bubble Data API.
//
// Responses are classified for the reconciler: missing or inaccessible
// records become SourceNotFound, rate limiting and server or network
// failures become retryable UpstreamTransient errors, and everything else is
// UpstreamPermanent. A 429 also closes the shared throttle gate for the
// Retry-After window so that every worker backs off, not only the one that
// was refused.
package bubble

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/client"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/metrics"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/throttle"

	"github.com/go-playground/validator/v10"
	gocache "github.com/patrickmn/go-cache"
)

const (
	gateKey = "bubble"

	// defaultRetryAfter applies to a 429 without a usable Retry-After.
	defaultRetryAfter = 5 * time.Second
	maxRetryAfter     = 5 * time.Minute
)

type Options struct {
	BaseURL       string
	Token         string
	DataType      string
	LegacyIDField string
	Timeout       time.Duration
	CacheTTL      time.Duration
	Gate          throttle.Gate
	Logger        *logger.Logger
}

type Client struct {
	http          *client.HttpClient
	dataType      string
	legacyIDField string
	cache         *gocache.Cache
	gate          throttle.Gate
	validate      *validator.Validate
	log           *logger.Logger
	now           func() time.Time
}

func NewClient(opts Options) *Client {
	if opts.Gate == nil {
		opts.Gate = throttle.NewMemoryGate()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	var cache *gocache.Cache
	if opts.CacheTTL > 0 {
		cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	return &Client{
		http:          client.NewHttpClient(opts.BaseURL, opts.Timeout).WithBearer(opts.Token),
		dataType:      opts.DataType,
		legacyIDField: opts.LegacyIDField,
		cache:         cache,
		gate:          opts.Gate,
		validate:      validator.New(),
		log:           opts.Logger,
		now:           time.Now,
	}
}

// GetRecord fetches one record by id. A cached copy is returned when the
// same id was fetched within the cache TTL, so redelivered jobs do not hit
// the API again.
func (c *Client) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(id); ok {
			metrics.FetchTotal.WithLabelValues("cached").Inc()
			rec := *cached.(*model.Record)
			return &rec, nil
		}
	}

	resp, err := c.get(ctx, "/obj/"+url.PathEscape(c.dataType)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if err := c.classify(ctx, resp, id); err != nil {
		return nil, err
	}

	payload, err := decodeRecord(resp.Body)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("permanent").Inc()
		return nil, apperrors.UpstreamPermanent("failed to decode record", err).
			WithDetails(map[string]any{"record_id": id})
	}
	if err := c.validate.Struct(payload); err != nil {
		metrics.FetchTotal.WithLabelValues("permanent").Inc()
		return nil, apperrors.UpstreamPermanent("record payload is missing its id", err).
			WithDetails(map[string]any{"record_id": id})
	}

	rec := &model.Record{
		ID:       payload.ID,
		Name:     strings.TrimSpace(payload.Name),
		Website:  strings.TrimSpace(payload.Website),
		Phone:    strings.TrimSpace(payload.Phone),
		Email:    strings.TrimSpace(payload.Email),
		Address:  strings.TrimSpace(string(payload.Address)),
		LegacyID: strings.TrimSpace(payload.Fields.String(c.legacyIDField)),
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()

	if c.cache != nil {
		cached := *rec
		c.cache.SetDefault(id, &cached)
	}
	return rec, nil
}

// Page is one slice of the record listing.
type Page struct {
	IDs []string
	// Count is the number of results the API returned, including any
	// without an id. The cursor advances by Count, not len(IDs).
	Count     int
	Cursor    int
	Remaining int
}

// Next is the cursor of the following page, or -1 when this was the last.
func (p Page) Next() int {
	if p.Remaining <= 0 || p.Count == 0 {
		return -1
	}
	return p.Cursor + p.Count
}

// ListRecordIDs returns the ids of one page of records starting at cursor.
func (c *Client) ListRecordIDs(ctx context.Context, cursor, limit int) (*Page, error) {
	query := url.Values{}
	query.Set("cursor", strconv.Itoa(cursor))
	query.Set("limit", strconv.Itoa(limit))

	resp, err := c.get(ctx, "/obj/"+url.PathEscape(c.dataType), query)
	if err != nil {
		return nil, err
	}
	if err := c.classify(ctx, resp, ""); err != nil {
		if apperrors.HasCode(err, apperrors.CodeSourceNotFound) {
			return nil, apperrors.UpstreamPermanent("data type is not exposed by the Data API", err).
				WithDetails(map[string]any{"data_type": c.dataType})
		}
		return nil, err
	}

	var env envelope[listPayload]
	if err := resp.DecodeJSON(&env); err != nil {
		return nil, apperrors.UpstreamPermanent("failed to decode record listing", err)
	}

	page := &Page{
		IDs:       make([]string, 0, len(env.Response.Results)),
		Count:     len(env.Response.Results),
		Cursor:    env.Response.Cursor,
		Remaining: env.Response.Remaining,
	}
	for _, r := range env.Response.Results {
		if r.ID != "" {
			page.IDs = append(page.IDs, r.ID)
		}
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*client.Response, error) {
	if err := throttle.Wait(ctx, c.gate, gateKey); err != nil {
		metrics.FetchTotal.WithLabelValues("throttled").Inc()
		return nil, apperrors.UpstreamTransient("waiting for upstream cool-down", 0, err)
	}

	start := time.Now()
	resp, err := c.http.GET(ctx, path, query)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchTotal.WithLabelValues("transient").Inc()
		return nil, apperrors.UpstreamTransient("bubble request failed", 0, err)
	}
	return resp, nil
}

// classify maps a non-2xx response to the error taxonomy.
func (c *Client) classify(ctx context.Context, resp *client.Response, id string) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	msg := client.GetErrorMessage(resp)
	switch {
	case status == http.StatusNotFound || status == http.StatusForbidden || status == http.StatusGone:
		metrics.FetchTotal.WithLabelValues("not_found").Inc()
		return apperrors.SourceNotFound(id).WithDetails(map[string]any{
			"status":   status,
			"upstream": msg,
		})

	case status == http.StatusTooManyRequests:
		metrics.FetchTotal.WithLabelValues("throttled").Inc()
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		if err := c.gate.BlockFor(ctx, gateKey, retryAfter); err != nil {
			c.log.Warn("Failed to share upstream cool-down", "retry_after", retryAfter, "error", err)
		}
		return apperrors.UpstreamTransient("bubble rate limit exceeded", retryAfter, errors.New(msg))

	case status >= 500:
		metrics.FetchTotal.WithLabelValues("transient").Inc()
		return apperrors.UpstreamTransient(fmt.Sprintf("bubble returned %d", status), 0, errors.New(msg))

	default:
		metrics.FetchTotal.WithLabelValues("permanent").Inc()
		return apperrors.UpstreamPermanent(fmt.Sprintf("bubble returned %d", status), errors.New(msg)).
			WithDetails(map[string]any{"record_id": id})
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date and clamps the result
// to (0, maxRetryAfter].
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultRetryAfter
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	} else {
		return defaultRetryAfter
	}

	if d <= 0 {
		return time.Second
	}
	return min(d, maxRetryAfter)
}
