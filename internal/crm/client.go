// Package crm talks to the Flowlu CRM/ERP API. Every call is a form-encoded
// POST that is retried while Flowlu reports its per-second rate limit.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	upstreamName = "flowlu"

	// DefaultRateLimitSignal is the error text Flowlu sends when throttling.
	DefaultRateLimitSignal = "Request rate per second exceeded"

	maxBodyBytes = 4 << 20
)

type Client struct {
	baseURL string
	apiKey  string
	signal  string
	policy  RetryPolicy

	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
	sleep   func(context.Context, time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

func WithRateLimitSignal(signal string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(signal); s != "" {
			c.signal = s
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		signal:  DefaultRateLimitSignal,
		policy:  DefaultRetryPolicy(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     zap.NewNop(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("crm.client")
	return c
}

// Submit posts fields to path and returns the decoded envelope. Rate-limited
// attempts are retried according to the policy; any other failure is
// returned as is. Callers must check Envelope.OK.
func (c *Client) Submit(ctx context.Context, path string, fields url.Values) (*Envelope, error) {
	if c.baseURL == "" {
		return nil, ErrInvalidConfig
	}

	maxAttempts := c.policy.attempts()
	b := c.policy.newBackOff()
	log := logger.WithContext(ctx, c.log).With(zap.String("endpoint", path))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		env, err := c.post(ctx, path, fields)
		if err == nil {
			return env, nil
		}
		if !c.isRateLimited(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := b.NextBackOff()
		log.Warn("rate limit exceeded, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("delay", delay),
		)
		c.metrics.RecordUpstreamRetry(ctx, upstreamName, path, "rate_limited")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	log.Error("rate limit retries exhausted", zap.Int("attempts", maxAttempts))
	return nil, fmt.Errorf("%w after %d attempts", ErrMaxRetriesExceeded, maxAttempts)
}

func (c *Client) isRateLimited(err error) bool {
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		return false
	}
	return strings.TrimSpace(upErr.Message) == c.signal
}

func (c *Client) post(ctx context.Context, path string, fields url.Values) (*Envelope, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if c.apiKey != "" {
		endpoint += "?api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamAttempt(ctx, upstreamName, path, 0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.RecordUpstreamAttempt(ctx, upstreamName, path, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, err
	}

	env := &Envelope{raw: body}
	decodeErr := json.Unmarshal(body, env)

	if resp.StatusCode >= http.StatusBadRequest {
		message := ""
		if decodeErr == nil {
			message = env.ErrorMessage()
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: message, Body: string(body)}
	}
	if decodeErr != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "invalid json response", Body: string(body)}
	}

	// Flowlu occasionally throttles with a 200 and an error field.
	if !env.OK() && strings.TrimSpace(env.ErrorMessage()) == c.signal {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: c.signal, Body: string(body)}
	}

	return env, nil
}
