// Package registrar calls the domain reseller API: registrant creation,
// domain and email hosting orders, and availability lookups.
package registrar

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

	"github.com/gosimple/slug"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	upstreamName = "registrar"

	pathCustomerCreate = "customers"
	pathDomainRegister = "domains/register"
	pathEmailRegister  = "email/register"
	pathAvailability   = "domains/availability"

	headerRequestID  = "Request-Id"
	headerSignature  = "Signature"
	headerResellerID = "Reseller-ID"

	maxBodyBytes = 2 << 20
)

type Client struct {
	baseURL    string
	apiKey     string
	resellerID string
	period     int

	http      *http.Client
	log       *zap.Logger
	metrics   *metrics.Metrics
	requestID func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithPeriod(years int) Option {
	return func(c *Client) {
		if years > 0 {
			c.period = years
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

// WithRequestIDGenerator overrides how per-call request ids are minted.
func WithRequestIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

func NewClient(baseURL, apiKey, resellerID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		resellerID: strings.TrimSpace(resellerID),
		period:     1,
		http:       &http.Client{Timeout: 20 * time.Second},
		log:        zap.NewNop(),
		requestID:  NewRequestID,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("registrar.client")
	return c
}

// RegisterCustomer creates a registrant account.
func (c *Client) RegisterCustomer(ctx context.Context, r Registrant) (Customer, error) {
	const op = "register_customer"
	resp, err := c.do(ctx, op, http.MethodPost, pathCustomerCreate, nil, r)
	if err != nil {
		return Customer{}, err
	}

	var customer Customer
	if err := json.Unmarshal(resp.Data, &customer); err != nil {
		return Customer{}, &Error{Operation: op, Message: "unexpected registrar response", cause: err}
	}
	if customer.Username == "" {
		customer.Username = r.Username
	}
	return customer, nil
}

// RegisterDomain orders the domain and, once the registrar accepts it and
// planID is set, the email hosting package for it. A nil error means every
// attempted step was accepted.
func (c *Client) RegisterDomain(ctx context.Context, domain, customerID, planID string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return &Error{Operation: "register_domain", Message: "domain is required", cause: ErrInvalidDomain}
	}
	log := logger.WithContext(ctx, c.log).With(zap.String("domain", domain))

	status, err := c.order(ctx, "register_domain", pathDomainRegister, map[string]any{
		"domain":      domain,
		"customer_id": customerID,
		"period":      c.period,
	})
	if err != nil {
		log.Warn("domain registration failed", zap.Error(err))
		return err
	}
	if !status.accepted() {
		log.Warn("domain registration not accepted", zap.Int("status", int(status)))
		return &Error{
			Operation: "register_domain",
			Message:   fmt.Sprintf("domain registration returned status %d", status),
		}
	}

	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil
	}

	emailStatus, err := c.order(ctx, "register_email", pathEmailRegister, map[string]any{
		"domain":      domain,
		"plan_id":     planID,
		"customer_id": customerID,
		"period":      c.period,
	})
	if err == nil && !emailStatus.accepted() {
		err = fmt.Errorf("email hosting returned status %d", emailStatus)
	}
	if err != nil {
		log.Warn("email hosting registration failed", zap.String("plan_id", planID), zap.Error(err))
		return &EmailHostingError{Domain: domain, Cause: err}
	}
	return nil
}

// CheckAvailability looks up the base label of name across Suffixes. The
// upstream entries are returned untouched.
func (c *Client) CheckAvailability(ctx context.Context, name string) ([]json.RawMessage, error) {
	base := BaseName(name)
	if base == "" {
		return nil, &Error{Operation: "check_availability", Message: "domain is required", cause: ErrInvalidDomain}
	}

	names := make([]string, 0, len(Suffixes))
	for _, suffix := range Suffixes {
		names = append(names, base+"."+suffix)
	}
	query := url.Values{}
	query.Set("domain_names", strings.Join(names, ","))

	resp, err := c.do(ctx, "check_availability", http.MethodGet, pathAvailability, query, nil)
	if err != nil {
		return nil, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		return []json.RawMessage{}, nil
	}
	if entries == nil {
		entries = []json.RawMessage{}
	}
	return entries, nil
}

// BaseName returns the slug of the label before the first dot.
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return slug.Make(name)
}

func (c *Client) order(ctx context.Context, op, path string, body map[string]any) (statusCode, error) {
	resp, err := c.do(ctx, op, http.MethodPost, path, nil, body)
	if err != nil {
		return 0, err
	}
	var data orderData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, &Error{Operation: op, Message: "unexpected registrar response", cause: err}
	}
	return data.Status, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (resp response, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.RecordRegistrarCall(ctx, op, outcome)
	}()

	if c.baseURL == "" {
		return response{}, &Error{Operation: op, Message: "registrar is not configured", cause: ErrInvalidConfig}
	}

	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return response{}, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return response{}, err
	}
	requestID := c.requestID()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerSignature, Sign(requestID, c.apiKey))
	req.Header.Set(headerResellerID, c.resellerID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamAttempt(ctx, upstreamName, path, 0, time.Since(start))
		return response{}, &Error{Operation: op, Message: "registrar request failed", cause: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	c.metrics.RecordUpstreamAttempt(ctx, upstreamName, path, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return response{}, &Error{Operation: op, Message: "registrar request failed", StatusCode: httpResp.StatusCode, cause: err}
	}

	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Warn("registrar returned non-json body",
			zap.String("operation", op),
			zap.Int("status_code", httpResp.StatusCode),
		)
		return response{}, &Error{
			Operation:  op,
			Message:    fmt.Sprintf("registrar request failed with status %d", httpResp.StatusCode),
			StatusCode: httpResp.StatusCode,
			cause:      err,
		}
	}
	if !resp.Status || httpResp.StatusCode >= http.StatusBadRequest {
		return response{}, &Error{Operation: op, Message: resp.failureMessage(), StatusCode: httpResp.StatusCode}
	}
	return resp, nil
}

// IsInvalidInput reports errors caused by caller input rather than the
// registrar.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidDomain)
}
