package service

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderbridge/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var minorUnits = decimal.NewFromInt(100)

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Provider   paymentdomain.IntentCreator
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log             *zap.Logger
	provider        paymentdomain.IntentCreator
	currency        string
	acceptSucceeded bool
	obsMetrics      *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	currency := strings.ToLower(strings.TrimSpace(p.Config.Stripe.Currency))
	if currency == "" {
		currency = "gbp"
	}
	return &Service{
		log:             p.Log.Named("payment.service"),
		provider:        p.Provider,
		currency:        currency,
		acceptSucceeded: p.Config.Stripe.AcceptSucceeded,
		obsMetrics:      p.ObsMetrics,
	}
}

// Process creates a confirmed intent for TotalPrice. Only an intent that
// needs customer action is returned to the caller, unless completed
// payments are explicitly accepted.
func (s *Service) Process(ctx context.Context, req paymentdomain.ProcessPaymentRequest) (paymentdomain.PaymentResult, error) {
	methodID := strings.TrimSpace(req.PaymentMethodID)
	if methodID == "" {
		return paymentdomain.PaymentResult{}, paymentdomain.ErrInvalidPaymentMethod
	}
	if !req.TotalPrice.IsPositive() {
		return paymentdomain.PaymentResult{}, paymentdomain.ErrInvalidAmount
	}

	amount := req.TotalPrice.Mul(minorUnits).Round(0).IntPart()
	provider := s.provider.Provider()
	idemKey := strings.TrimSpace(req.IdempotencyKey)
	if idemKey == "" {
		idemKey = "checkout-" + ulid.Make().String()
	}
	log := logger.WithContext(ctx, s.log).With(
		zap.String("provider", provider),
		zap.String("idempotency_key", idemKey),
		zap.Int64("amount", amount),
		zap.String("currency", s.currency),
	)

	intent, err := s.provider.CreateIntent(ctx, paymentdomain.IntentRequest{
		Amount:          amount,
		Currency:        s.currency,
		PaymentMethodID: methodID,
		IdempotencyKey:  idemKey,
	})
	if err != nil {
		log.Error("create payment intent failed", zap.Error(err))
		s.obsMetrics.RecordPayment(ctx, provider, "error")
		return paymentdomain.PaymentResult{}, err
	}

	log = log.With(zap.String("intent_id", intent.ID), zap.String("status", intent.Status))
	s.obsMetrics.RecordPayment(ctx, provider, intent.Status)

	switch {
	case intent.Status == paymentdomain.StatusRequiresAction:
		log.Info("payment requires customer action")
		return paymentdomain.PaymentResult{
			IntentID:     intent.ID,
			ClientSecret: intent.ClientSecret,
			Status:       intent.Status,
		}, nil
	case intent.Status == paymentdomain.StatusSucceeded && s.acceptSucceeded:
		log.Info("payment succeeded")
		return paymentdomain.PaymentResult{IntentID: intent.ID, Status: intent.Status}, nil
	default:
		log.Warn("payment intent not actionable")
		return paymentdomain.PaymentResult{}, paymentdomain.ErrPaymentFailed
	}
}
