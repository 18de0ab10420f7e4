package crm

import (
	"net/http"

	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("crm.client",
	fx.Provide(fx.Annotate(NewFromConfig, fx.As(fx.Self()), fx.As(new(API)))),
)

func NewFromConfig(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Client {
	retry := cfg.CRM.Retry
	return NewClient(cfg.CRM.BaseURL, cfg.CRM.APIKey,
		WithHTTPClient(&http.Client{Timeout: cfg.CRM.Timeout}),
		WithRateLimitSignal(cfg.CRM.RateLimitSignal),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:         retry.MaxAttempts,
			InitialInterval:     retry.InitialInterval,
			Multiplier:          retry.Multiplier,
			MaxInterval:         retry.MaxInterval,
			RandomizationFactor: retry.RandomizationFactor,
		}),
		WithLogger(log),
		WithMetrics(m),
	)
}
