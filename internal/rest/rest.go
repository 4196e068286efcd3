// Package rest issues HTTP calls through the shared rate limiter, with
// transient-error retries and a circuit breaker in front of the transport.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/driftwire-io/driftwire"
	"github.com/driftwire-io/driftwire/internal/ratelimit"
)

// Default client settings.
const (
	defaultMaxAttempts = 3
	defaultRetryWait   = 5 * time.Second
	defaultConnTimeout = 30 * time.Second
	defaultRespTimeout = 60 * time.Second

	defaultCBMaxFailures uint32 = 5
	defaultCBTimeout            = 30 * time.Second
	defaultCBInterval           = 60 * time.Second
)

// Config configures the REST client.
type Config struct {
	// BaseURL is the API base; route paths are resolved relative to it.
	BaseURL string
	// Token is sent as the Authorization header ("Bot <token>").
	Token string
	// UserAgent overrides the default client identification header.
	UserAgent string
	// MaxAttempts caps how many times one call touches the network when
	// transient errors occur. Defaults to 3.
	MaxAttempts int
	// RetryWait is the pause between transient retries. Defaults to 5s.
	RetryWait time.Duration
	// BreakerMaxFailures is the consecutive-failure count that opens the
	// circuit.
	BreakerMaxFailures uint32
	// BreakerTimeout is how long the circuit stays open before a probe.
	BreakerTimeout time.Duration
	// BreakerInterval is the closed-state cycle for clearing failure counts.
	BreakerInterval time.Duration
}

// Client is the rate-limited REST client. Every call passes through the
// limiter's Acquire/Observe pair; transient network failures are retried on
// a fixed schedule; a circuit breaker fails calls fast while the API is down.
type Client struct {
	baseURL     string
	token       string
	userAgent   string
	maxAttempts int
	retryWait   time.Duration

	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New creates a REST client. If limiter is nil a default one is created; if
// logger is nil, slog.Default() is used.
func New(cfg Config, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.New(nil, logger)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = defaultRetryWait
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "DiscordBot (https://github.com/driftwire-io/driftwire, v0)"
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	cbTimeout := cfg.BreakerTimeout
	if cbTimeout == 0 {
		cbTimeout = defaultCBTimeout
	}
	cbInterval := cfg.BreakerInterval
	if cbInterval == 0 {
		cbInterval = defaultCBInterval
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "rest",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    cbInterval,
		Timeout:     cbTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		userAgent:   userAgent,
		maxAttempts: maxAttempts,
		retryWait:   retryWait,
		http: &http.Client{
			Transport: newPooledTransport(defaultConnTimeout, defaultRespTimeout),
		},
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
	}
}

// Request issues one HTTP call for the route. It blocks in the limiter until
// the route may proceed, feeds the response headers back into the limiter,
// and returns the raw response body.
//
// Failure modes: *driftwire.APIError when the body carries an application
// error marker, *driftwire.TransportError after transient retries are
// exhausted or while the circuit is open, and (nil, nil) for unrecognized
// failures, which are logged and swallowed so one bad call cannot take the
// process down. Callers must treat a nil body without error as a lost call.
func (c *Client) Request(ctx context.Context, route driftwire.Route, payload any) (json.RawMessage, error) {
	requestID := uuid.New().String()

	if err := c.limiter.Acquire(ctx, route); err != nil {
		return nil, err
	}

	var resp *http.Response
	attempts := 0
	op := func() error {
		attempts++
		req, err := c.buildRequest(ctx, route, payload)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.breaker.Execute(func() (*http.Response, error) {
			return c.http.Do(req)
		})
		if err != nil {
			if isTransient(err) {
				c.logger.Warn("transient request failure, retrying",
					"request_id", requestID,
					"route", route.Identity(),
					"attempt", attempts,
					"error", err,
				)
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryWait), uint64(c.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, schedule); err != nil {
		return nil, c.classify(requestID, route, attempts, err)
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Body read failures land on the swallow path with the transport
		// already consumed.
		c.logger.Error("failed to read response body, dropping call",
			"request_id", requestID,
			"route", route.Identity(),
			"error", err,
		)
		return nil, nil
	}

	c.limiter.Observe(route, resp.StatusCode, resp.Header)

	c.logger.Debug("request complete",
		"request_id", requestID,
		"route", route.Identity(),
		"status", resp.StatusCode,
	)

	if hasErrorMarker(body) {
		return nil, &driftwire.APIError{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

// classify maps a terminal failure from the retry loop onto the error
// taxonomy. Context errors propagate as-is; everything unrecognized is
// logged and swallowed.
func (c *Client) classify(requestID string, route driftwire.Route, attempts int, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isTransient(err):
		return &driftwire.TransportError{Attempts: attempts, Err: err}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &driftwire.TransportError{Attempts: attempts, Err: err}
	default:
		c.logger.Error("unrecognized request failure, dropping call",
			"request_id", requestID,
			"route", route.Identity(),
			"error", err,
		)
		return nil
	}
}

// buildRequest constructs the HTTP request for a route. GET and DELETE send
// the payload as the query string (nil or url.Values); POST and PUT send it
// as a JSON body.
func (c *Client) buildRequest(ctx context.Context, route driftwire.Route, payload any) (*http.Request, error) {
	target := c.baseURL + route.Path

	var body io.Reader
	switch route.Method {
	case driftwire.MethodGet, driftwire.MethodDelete:
		if payload != nil {
			values, ok := payload.(url.Values)
			if !ok {
				return nil, fmt.Errorf("%s payload must be url.Values, got %T", route.Method, payload)
			}
			if encoded := values.Encode(); encoded != "" {
				target += "?" + encoded
			}
		}
	case driftwire.MethodPost, driftwire.MethodPut:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	default:
		return nil, fmt.Errorf("unsupported route method %q", route.Method)
	}

	req, err := http.NewRequestWithContext(ctx, string(route.Method), target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// hasErrorMarker reports whether the response body is a JSON object carrying
// an application-level error structure.
func hasErrorMarker(body []byte) bool {
	var probe struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return len(probe.Errors) > 0 && string(probe.Errors) != "null"
}

// isTransient reports whether err is a whitelisted transient network error.
// Application errors and rate-limit waits never land here.
func isTransient(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE, syscall.ETIMEDOUT:
			return true
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

// newPooledTransport creates an http.Transport with connection pooling
// sized for a single-API client: one host, moderate concurrency, long-lived
// connections.
func newPooledTransport(connTimeout, respTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       120 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
