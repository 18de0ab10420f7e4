package payment

import (
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
	paymentservice "github.com/smallbiznis/orderbridge/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(func(cfg config.Config) paymentdomain.IntentCreator {
		return stripe.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.BaseURL, cfg.Stripe.Timeout)
	}),
	fx.Provide(paymentservice.NewService),
)
