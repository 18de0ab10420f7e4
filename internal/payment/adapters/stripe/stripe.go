package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
)

const DefaultBaseURL = "https://api.stripe.com"

type paymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Error is a non-2xx reply from the Stripe API.
type Error struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe %s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("stripe %s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return paymentdomain.ErrProviderFailed
}

// Client creates payment intents over the Stripe REST API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

var _ paymentdomain.IntentCreator = (*Client)(nil)

func (c *Client) Provider() string {
	return "stripe"
}

// CreateIntent creates and confirms a card intent in one call. Redirect
// based methods are disabled so the outcome is known synchronously.
func (c *Client) CreateIntent(ctx context.Context, req paymentdomain.IntentRequest) (paymentdomain.Intent, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.Amount, 10))
	values.Set("currency", strings.ToLower(req.Currency))
	values.Set("payment_method", req.PaymentMethodID)
	values.Set("confirm", "true")
	values.Set("automatic_payment_methods[enabled]", "true")
	values.Set("automatic_payment_methods[allow_redirects]", "never")

	intent, err := c.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, req.IdempotencyKey)
	if err != nil {
		return paymentdomain.Intent{}, err
	}
	return paymentdomain.Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       intent.Status,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) (paymentIntent, error) {
	if c.apiKey == "" {
		return paymentIntent{}, paymentdomain.ErrInvalidConfig
	}

	var body io.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return paymentIntent{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return paymentIntent{}, fmt.Errorf("%w: %w", paymentdomain.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return paymentIntent{}, &Error{StatusCode: resp.StatusCode, Type: "api_error", Message: "stripe_request_failed"}
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return paymentIntent{}, &Error{
			StatusCode: resp.StatusCode,
			Type:       stripeErr.Error.Type,
			Code:       stripeErr.Error.Code,
			Message:    message,
		}
	}

	var intent paymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return paymentIntent{}, fmt.Errorf("%w: %w", paymentdomain.ErrProviderFailed, err)
	}
	if intent.ID == "" {
		return paymentIntent{}, fmt.Errorf("%w: stripe_response_invalid", paymentdomain.ErrProviderFailed)
	}
	return intent, nil
}
