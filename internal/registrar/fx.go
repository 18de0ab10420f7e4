package registrar

import (
	"net/http"

	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("registrar.client",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Client {
	return NewClient(cfg.Registrar.BaseURL, cfg.Registrar.APIKey, cfg.Registrar.ResellerID,
		WithHTTPClient(&http.Client{Timeout: cfg.Registrar.Timeout}),
		WithPeriod(cfg.Registrar.Period),
		WithLogger(log),
		WithMetrics(m),
	)
}
