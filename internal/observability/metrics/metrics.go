package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	upstreamAttempts metric.Int64Counter
	upstreamRetries  metric.Int64Counter
	orders           metric.Int64Counter
	invoices         metric.Int64Counter
	payments         metric.Int64Counter
	registrarCalls   metric.Int64Counter
	upstreamLatency  metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "orderbridge"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	if m.upstreamAttempts, err = meter.Int64Counter("orderbridge_upstream_attempts_total"); err != nil {
		return nil, err
	}
	if m.upstreamRetries, err = meter.Int64Counter("orderbridge_upstream_retries_total"); err != nil {
		return nil, err
	}
	if m.orders, err = meter.Int64Counter("orderbridge_orders_total"); err != nil {
		return nil, err
	}
	if m.invoices, err = meter.Int64Counter("orderbridge_invoices_total"); err != nil {
		return nil, err
	}
	if m.payments, err = meter.Int64Counter("orderbridge_payments_total"); err != nil {
		return nil, err
	}
	if m.registrarCalls, err = meter.Int64Counter("orderbridge_registrar_calls_total"); err != nil {
		return nil, err
	}
	if m.upstreamLatency, err = meter.Float64Histogram("orderbridge_upstream_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordUpstreamAttempt counts one outbound call and its latency.
func (m *Metrics) RecordUpstreamAttempt(ctx context.Context, upstream, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("upstream", upstream),
		attribute.String("endpoint", endpoint),
		attribute.Int("status_code", status),
	)...)
	m.upstreamAttempts.Add(ctx, 1, attrs)
	m.upstreamLatency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordUpstreamRetry(ctx context.Context, upstream, endpoint, reason string) {
	if m == nil {
		return
	}
	m.upstreamRetries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("upstream", upstream),
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	)...))
}

func (m *Metrics) RecordOrder(ctx context.Context, outcome, step string) {
	if m == nil {
		return
	}
	m.orders.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", outcome),
		attribute.String("step", step),
	)...))
}

func (m *Metrics) RecordInvoice(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.invoices.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func (m *Metrics) RecordPayment(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.payments.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)...))
}

func (m *Metrics) RecordRegistrarCall(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.registrarCalls.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"upstream":    {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
	"outcome":     {},
	"step":        {},
	"provider":    {},
	"status":      {},
	"operation":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
