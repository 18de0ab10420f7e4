package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

const (
	StatusRequiresAction = "requires_action"
	StatusSucceeded      = "succeeded"
)

type ProcessPaymentRequest struct {
	PaymentMethodID string
	TotalPrice      decimal.Decimal
	// IdempotencyKey lets a resubmitted checkout reuse the intent of its
	// first attempt. A fresh key is generated when empty.
	IdempotencyKey string
}

type PaymentResult struct {
	IntentID     string `json:"intentId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Status       string `json:"status"`
}

// IntentRequest is a server-confirmed card intent in minor units.
type IntentRequest struct {
	Amount          int64
	Currency        string
	PaymentMethodID string
	IdempotencyKey  string
}

// Intent is the processor's view of a payment intent after confirmation.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

// IntentCreator creates and confirms payment intents at a processor.
type IntentCreator interface {
	Provider() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
}

type Service interface {
	Process(context.Context, ProcessPaymentRequest) (PaymentResult, error)
}

var (
	ErrInvalidConfig        = errors.New("invalid_config")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrPaymentFailed        = errors.New("payment_failed")
	ErrProviderFailed       = errors.New("payment_provider_failed")
)
