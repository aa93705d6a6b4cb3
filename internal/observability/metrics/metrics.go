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

// Metrics exposes the invoice engine instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	chargesAllocated   metric.Int64Counter
	invoiceTransitions metric.Int64Counter
	invoicesCreated    metric.Int64Counter
	invoicesDeleted    metric.Int64Counter
	paymentsReconciled metric.Int64Counter
	recurringGenerated metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New creates the domain instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fatura"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	if m.chargesAllocated, err = meter.Int64Counter("fatura_card_charges_allocated_total"); err != nil {
		return nil, err
	}
	if m.invoiceTransitions, err = meter.Int64Counter("fatura_invoice_transitions_total"); err != nil {
		return nil, err
	}
	if m.invoicesCreated, err = meter.Int64Counter("fatura_invoices_created_total"); err != nil {
		return nil, err
	}
	if m.invoicesDeleted, err = meter.Int64Counter("fatura_invoices_deleted_total"); err != nil {
		return nil, err
	}
	if m.paymentsReconciled, err = meter.Int64Counter("fatura_invoice_payments_total"); err != nil {
		return nil, err
	}
	if m.recurringGenerated, err = meter.Int64Counter("fatura_recurring_generated_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordChargesAllocated counts installments placed on invoices.
func (m *Metrics) RecordChargesAllocated(ctx context.Context, installments int) {
	if m == nil || installments <= 0 {
		return
	}
	m.chargesAllocated.Add(ctx, int64(installments))
}

func (m *Metrics) RecordInvoiceTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.invoiceTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordInvoiceCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.invoicesCreated.Add(ctx, 1)
}

func (m *Metrics) RecordInvoiceDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.invoicesDeleted.Add(ctx, 1)
}

// RecordPayment counts payment mutations by kind and operation.
func (m *Metrics) RecordPayment(ctx context.Context, kind, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("operation", strings.TrimSpace(operation)),
	)
	m.paymentsReconciled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRecurringGenerated(ctx context.Context, templateType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("template_type", strings.TrimSpace(templateType)))
	m.recurringGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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

// User and resource ids are deliberately absent.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"from_status":   {},
	"to_status":     {},
	"kind":          {},
	"operation":     {},
	"template_type": {},
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
