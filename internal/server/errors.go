package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderbridge/internal/crm"
	"github.com/smallbiznis/orderbridge/internal/hosting"
	invoicedomain "github.com/smallbiznis/orderbridge/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/orderbridge/internal/order/domain"
	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
	"github.com/smallbiznis/orderbridge/internal/registrar"
)

const (
	msgInternal       = "internal server error"
	msgOrderFailed    = "Failed to create client or project in Flowlu."
	msgInvoiceFailed  = "Failed to create invoice in Flowlu."
	msgPaymentFailed  = "Payment intent failed."
	msgPaymentError   = "Failed to process payment."
	msgRateLimited    = "Too many requests, please try again shortly."
	msgUnavailable    = "service unavailable"
	msgInvalidRequest = "invalid request"
)

type errorResponse struct {
	Status *bool  `json:"status,omitempty"`
	Error  string `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// publicError pins the status and message a handler wants the caller to
// see while keeping the cause for logs.
type publicError struct {
	status  int
	message string
	err     error
}

func (e *publicError) Error() string {
	if e.err == nil {
		return e.message
	}
	return e.message + ": " + e.err.Error()
}

func (e *publicError) Unwrap() error {
	return e.err
}

func withPublicMessage(status int, message string, err error) error {
	return &publicError{status: status, message: message, err: err}
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: msgInternal}
	}

	var pub *publicError
	if errors.As(err, &pub) {
		return pub.status, errorResponse{Error: pub.message}
	}

	var failure *hosting.Failure
	if errors.As(err, &failure) {
		status := false
		return http.StatusBadGateway, errorResponse{Status: &status, Error: failure.Error()}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorResponse{Error: validationMessage(err)}
	}

	switch {
	case errors.Is(err, paymentdomain.ErrPaymentFailed):
		return http.StatusPaymentRequired, errorResponse{Error: msgPaymentFailed}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: msgRateLimited}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: msgUnavailable}
	default:
		return http.StatusInternalServerError, errorResponse{Error: msgInternal}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, orderdomain.ErrInvalidName),
		errors.Is(err, invoicedomain.ErrInvalidClient),
		errors.Is(err, invoicedomain.ErrInvalidProject),
		errors.Is(err, invoicedomain.ErrInvalidGrandTotal),
		errors.Is(err, paymentdomain.ErrInvalidPaymentMethod),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, hosting.ErrDomainRequired),
		errors.Is(err, hosting.ErrCustomerRequired),
		errors.Is(err, hosting.ErrInvalidRegistrant):
		return true
	default:
		return false
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return msgInvalidRequest
	case errors.Is(err, hosting.ErrDomainRequired):
		return "Domain name is required"
	default:
		return err.Error()
	}
}

// classifyErrorForLog maps an error to the type and code fields of the
// request log.
func classifyErrorForLog(err error) (string, string) {
	var stepErr *orderdomain.StepError
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation", err.Error()
	case errors.As(err, &stepErr):
		return "order_step", string(stepErr.Step)
	case errors.Is(err, crm.ErrMaxRetriesExceeded):
		return "upstream", "crm_max_retries"
	case errors.Is(err, crm.ErrRejected):
		return "upstream", "crm_rejected"
	case errors.Is(err, registrar.ErrRegistrarFailed):
		return "upstream", "registrar_failed"
	case errors.Is(err, paymentdomain.ErrPaymentFailed):
		return "payment", "payment_failed"
	case errors.Is(err, paymentdomain.ErrProviderFailed):
		return "upstream", "payment_provider_failed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit", "rate_limited"
	default:
		return "internal", "internal_error"
	}
}
