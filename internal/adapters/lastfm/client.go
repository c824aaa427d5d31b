// Package lastfm fetches listening histories from the Last.fm web API.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// Defaults for the Last.fm client.
const (
	DefaultBaseURL           = "https://ws.audioscrobbler.com/2.0/"
	DefaultRequestsPerSecond = 5.0
	DefaultTimeout           = 10 * time.Second
	DefaultTopLimit          = 50
	DefaultRecentLimit       = 200
	DefaultGenreArtists      = 10
	DefaultTagsPerArtist     = 5
	DefaultGenres            = 5
	DefaultMaxFailures       = 3

	userAgent    = "tastebud/1.0"
	maxBodyBytes = 8 << 20
	dependency   = "lastfm"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRateLimit sets the sustained request rate.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(math.Max(1, math.Ceil(perSecond))))
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout bounds each request. A client passed to WithHTTPClient is
// copied rather than modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAllowPartial lets a fetch succeed with some windows missing.
func WithAllowPartial(allow bool) Option {
	return func(c *Client) {
		c.allowPartial = allow
	}
}

// WithLimits sets how many top items and recent scrobbles are requested.
func WithLimits(top, recent int) Option {
	return func(c *Client) {
		if top > 0 {
			c.topLimit = top
		}
		if recent > 0 {
			c.recentLimit = recent
		}
	}
}

// WithGenreArtists sets how many top artists are consulted for genres.
func WithGenreArtists(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.genreArtists = n
		}
	}
}

// WithBreaker sets the circuit breaker thresholds.
func WithBreaker(failures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFailures = failures
		}
		if openTimeout > 0 {
			c.breakerTimeout = openTimeout
		}
	}
}

// WithClock overrides the time source used for now-playing scrobbles.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is a rate limited Last.fm API client. Requests are never retried.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	cb           *gobreaker.CircuitBreaker[[]byte]
	allowPartial bool
	topLimit     int
	recentLimit  int
	genreArtists int
	now          func() time.Time
	logger       logger.Logger

	timeout         time.Duration
	breakerFailures uint32
	breakerTimeout  time.Duration
}

// NewClient creates a client for apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:          apiKey,
		baseURL:         DefaultBaseURL,
		httpClient:      &http.Client{Timeout: DefaultTimeout},
		limiter:         rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), int(DefaultRequestsPerSecond)),
		allowPartial:    true,
		topLimit:        DefaultTopLimit,
		recentLimit:     DefaultRecentLimit,
		genreArtists:    DefaultGenreArtists,
		now:             time.Now,
		breakerFailures: 5,
		breakerTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.httpClient.Timeout != c.timeout {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("lastfm")
	}

	failures := c.breakerFailures
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        dependency,
		MaxRequests: 1,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.notFound()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			state := metrics.BreakerClosed
			switch to {
			case gobreaker.StateOpen:
				state = metrics.BreakerOpen
			case gobreaker.StateHalfOpen:
				state = metrics.BreakerHalfOpen
			}
			metrics.UpdateBreakerState(name, state)
		},
	})
	return c, nil
}

// call performs one API method and decodes the response into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("method", method)
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.get(ctx, c.baseURL+"?"+q.Encode())
	})
	if err != nil {
		return c.classify(ctx, method, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordDependencyError(dependency, "decode")
		return fmt.Errorf("%w: lastfm %s: decode: %v", model.ErrDependencyUnavailable, method, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("rate limiter: %w", context.DeadlineExceeded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Last.fm reports failures as {"error": n, "message": ...}, sometimes
	// with a 200 status.
	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
		apiErr.Status = resp.StatusCode
		return nil, &apiErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return body, nil
}

// classify maps a failed call onto the dependency taxonomy.
func (c *Client) classify(ctx context.Context, method string, err error) error {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.notFound():
		return fmt.Errorf("%w: %s", model.ErrNotFound, apiErr.Message)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return err
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		metrics.RecordDependencyError(dependency, "timeout")
		return fmt.Errorf("%w: lastfm %s: %v", model.ErrDependencyTimeout, method, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordDependencyError(dependency, "breaker_open")
	case errors.As(err, &apiErr):
		metrics.RecordDependencyError(dependency, apiErr.kind())
	default:
		metrics.RecordDependencyError(dependency, "unavailable")
	}
	c.logger.Error(ctx, "lastfm call failed", logger.String("method", method), logger.Error(err))
	return fmt.Errorf("%w: lastfm %s: %v", model.ErrDependencyUnavailable, method, err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
