package datamall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the production upstream address.
	DefaultBaseURL = "https://datamall2.mytransport.sg/ltaodataservice"

	attemptTimeout = 15 * time.Second
	maxAttempts    = 3
	baseBackoff    = time.Second
	maxRetryAfter  = time.Hour // also the backoff MaxInterval

	maxResponseBodySize = 32 << 20 // 32MB
)

// Getter fetches one JSON document from an upstream collection endpoint.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Client is an HTTP client for the DataMall API. It is stateless between
// calls; retry counters live inside a single Get.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger

	// per-attempt deadline and retry timer; overridden in tests
	attemptTimeout time.Duration
	timer          backoff.Timer
}

// NewClient creates a DataMall API client. An empty apiKey is accepted here
// and reported as ErrMissingAPIKey on the first Get.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// per-attempt timeouts are applied through the request context
		client:         &http.Client{},
		logger:         logger,
		attemptTimeout: attemptTimeout,
	}
}

// Fetch decodes the response of path into a value of type T.
func Fetch[T any](ctx context.Context, g Getter, path string, query url.Values) (T, error) {
	var out T
	err := g.Get(ctx, path, query, &out)
	return out, err
}

// Get requests path with the given query and decodes the JSON body into out.
//
// Up to 3 attempts are made. Transport failures, 429 and 5xx responses are
// retried after 1s then 2s; a 429 carrying Retry-After waits at least that
// long. Other non-2xx statuses and undecodable 2xx bodies fail immediately.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	floor := &floorBackOff{delegate: &backoff.ExponentialBackOff{
		InitialInterval:     baseBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxRetryAfter,
		MaxElapsedTime:      0, // attempts are bounded by WithMaxRetries
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}}
	b := backoff.WithContext(backoff.WithMaxRetries(floor, maxAttempts-1), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		body, rerr := c.do(ctx, endpoint)
		if rerr != nil {
			rerr.Endpoint = path
			rerr.Attempts = attempt
			if !rerr.Retryable() {
				return backoff.Permanent(rerr)
			}
			floor.raise(rerr.RetryAfter)
			return rerr
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(&RemoteError{
				Kind:       KindParse,
				Endpoint:   path,
				StatusCode: http.StatusOK,
				Attempts:   attempt,
				Err:        fmt.Errorf("decode response: %w", err),
			})
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("datamall request failed, retrying",
			"endpoint", path,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, c.timer)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return re
		}
		return fmt.Errorf("datamall %s: %w", path, err)
	}
	return nil
}

// do performs one bounded attempt and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, *RemoteError) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RemoteError{Kind: KindClient, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("AccountKey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RemoteError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		re := &RemoteError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			re.Kind = KindRateLimited
			re.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		case resp.StatusCode >= 500:
			re.Kind = KindServer
		default:
			re.Kind = KindClient
		}
		return nil, re
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &RemoteError{Kind: KindTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// parseRetryAfter reads a non-negative number of seconds, capped at
// maxRetryAfter. HTTP-date values and garbage yield zero (no floor).
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" || v[0] < '0' || v[0] > '9' {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0
	}
	if secs >= maxRetryAfter.Seconds() {
		return maxRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}

// floorBackOff never returns less than a floor raised by the last failure.
// The floor applies to one wait only.
type floorBackOff struct {
	delegate backoff.BackOff
	floor    time.Duration
}

func (f *floorBackOff) raise(d time.Duration) {
	if d > f.floor {
		f.floor = d
	}
}

func (f *floorBackOff) NextBackOff() time.Duration {
	next := f.delegate.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if f.floor > next {
		next = f.floor
	}
	f.floor = 0
	return next
}

func (f *floorBackOff) Reset() {
	f.floor = 0
	f.delegate.Reset()
}
