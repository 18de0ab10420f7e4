package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderbridge/internal/config"
	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
	paymentservice "github.com/smallbiznis/orderbridge/internal/payment/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	intent   paymentdomain.Intent
	err      error
	requests []paymentdomain.IntentRequest
}

func (f *fakeProvider) Provider() string { return "fake" }

func (f *fakeProvider) CreateIntent(_ context.Context, req paymentdomain.IntentRequest) (paymentdomain.Intent, error) {
	f.requests = append(f.requests, req)
	return f.intent, f.err
}

func newService(provider *fakeProvider, acceptSucceeded bool) paymentdomain.Service {
	cfg := config.Config{Stripe: config.StripeConfig{Currency: "GBP", AcceptSucceeded: acceptSucceeded}}
	return paymentservice.NewService(paymentservice.Params{
		Log:      zap.NewNop(),
		Config:   cfg,
		Provider: provider,
	})
}

func processRequest(total string) paymentdomain.ProcessPaymentRequest {
	return paymentdomain.ProcessPaymentRequest{
		PaymentMethodID: "pm_card",
		TotalPrice:      decimal.RequireFromString(total),
	}
}

func TestProcessReturnsSecretWhenActionRequired(t *testing.T) {
	provider := &fakeProvider{intent: paymentdomain.Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Status: "requires_action"}}

	res, err := newService(provider, false).Process(context.Background(), processRequest("465"))
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)

	require.Len(t, provider.requests, 1)
	assert.EqualValues(t, 46500, provider.requests[0].Amount)
	assert.Equal(t, "gbp", provider.requests[0].Currency)
	assert.Equal(t, "pm_card", provider.requests[0].PaymentMethodID)
}

func TestProcessConvertsFractionalTotalToMinorUnits(t *testing.T) {
	provider := &fakeProvider{intent: paymentdomain.Intent{Status: "requires_action"}}

	_, err := newService(provider, false).Process(context.Background(), processRequest("19.99"))
	require.NoError(t, err)
	assert.EqualValues(t, 1999, provider.requests[0].Amount)
}

func TestProcessFailsEveryOtherStatus(t *testing.T) {
	for _, status := range []string{"succeeded", "requires_payment_method", "processing", "canceled"} {
		provider := &fakeProvider{intent: paymentdomain.Intent{ID: "pi_1", ClientSecret: "secret", Status: status}}

		res, err := newService(provider, false).Process(context.Background(), processRequest("465"))
		require.ErrorIs(t, err, paymentdomain.ErrPaymentFailed, status)
		assert.Empty(t, res.ClientSecret, status)
	}
}

func TestProcessAcceptsSucceededWhenEnabled(t *testing.T) {
	provider := &fakeProvider{intent: paymentdomain.Intent{ID: "pi_1", ClientSecret: "secret", Status: "succeeded"}}

	res, err := newService(provider, true).Process(context.Background(), processRequest("465"))
	require.NoError(t, err)
	assert.Equal(t, "succeeded", res.Status)
	assert.Empty(t, res.ClientSecret)
}

func TestProcessValidatesInput(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider, false)

	_, err := svc.Process(context.Background(), paymentdomain.ProcessPaymentRequest{TotalPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPaymentMethod)

	_, err = svc.Process(context.Background(), paymentdomain.ProcessPaymentRequest{PaymentMethodID: "pm"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	assert.Empty(t, provider.requests)
}

func TestProcessPropagatesProviderError(t *testing.T) {
	provider := &fakeProvider{err: paymentdomain.ErrProviderFailed}

	_, err := newService(provider, false).Process(context.Background(), processRequest("465"))
	require.ErrorIs(t, err, paymentdomain.ErrProviderFailed)
}

func TestProcessSendsIdempotencyKey(t *testing.T) {
	provider := &fakeProvider{intent: paymentdomain.Intent{Status: "requires_action"}}
	svc := newService(provider, false)

	req := processRequest("465")
	req.IdempotencyKey = " order-42 "
	_, err := svc.Process(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), processRequest("465"))
	require.NoError(t, err)
	_, err = svc.Process(context.Background(), processRequest("465"))
	require.NoError(t, err)

	require.Len(t, provider.requests, 3)
	assert.Equal(t, "order-42", provider.requests[0].IdempotencyKey)
	assert.True(t, strings.HasPrefix(provider.requests[1].IdempotencyKey, "checkout-"))
	assert.NotEqual(t, provider.requests[1].IdempotencyKey, provider.requests[2].IdempotencyKey)
}
