// Package observability exports business metrics through OpenTelemetry.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/config"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterName = "lendora-backend"

	LoansCreatedTotal      = "lendora.loans.created"
	LoanTransitionsTotal   = "lendora.loans.transitions"
	PaymentsRecordedTotal  = "lendora.payments.recorded"
	PaymentsReversedTotal  = "lendora.payments.reversed"
	InvoicesGeneratedTotal = "lendora.invoices.generated"
	InvoicesSkippedTotal   = "lendora.invoices.skipped"
	InvoiceFailuresTotal   = "lendora.invoices.failed"
	InvoiceRunDuration     = "lendora.invoices.run.duration"

	exportInterval = 30 * time.Second
)

// Metrics implements service.Metrics with OpenTelemetry instruments
type Metrics struct {
	provider *sdkmetric.MeterProvider

	loansCreated      metric.Int64Counter
	loanTransitions   metric.Int64Counter
	paymentsRecorded  metric.Int64Counter
	paymentsReversed  metric.Int64Counter
	invoicesGenerated metric.Int64Counter
	invoicesSkipped   metric.Int64Counter
	invoiceFailures   metric.Int64Counter
	invoiceRunTime    metric.Float64Histogram
}

var _ service.Metrics = (*Metrics)(nil)

// New sets up the meter provider for the configured exporter. It returns
// service.NoOpMetrics when telemetry is disabled or the exporter is "none".
func New(ctx context.Context, cfg config.TelemetryConfig, env string) (service.Metrics, error) {
	if !cfg.Enabled || cfg.Exporter == "none" {
		log.Info().Msg("OpenTelemetry metrics disabled")
		return service.NoOpMetrics{}, nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch cfg.Exporter {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Exporter)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("environment", env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	m, err := newMetrics(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)), res)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(m.provider)

	log.Info().Str("exporter", cfg.Exporter).Msg("OpenTelemetry metrics initialized")
	return m, nil
}

func newMetrics(reader sdkmetric.Reader, res *resource.Resource) (*Metrics, error) {
	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}
	m := &Metrics{provider: sdkmetric.NewMeterProvider(opts...)}
	if err := m.createInstruments(m.provider.Meter(meterName)); err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	return m, nil
}

func (m *Metrics) createInstruments(meter metric.Meter) error {
	var err error
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.loansCreated, LoansCreatedTotal, "Loans created"},
		{&m.loanTransitions, LoanTransitionsTotal, "Loan status transitions"},
		{&m.paymentsRecorded, PaymentsRecordedTotal, "Payments recorded"},
		{&m.paymentsReversed, PaymentsReversedTotal, "Payments reversed"},
		{&m.invoicesGenerated, InvoicesGeneratedTotal, "Invoices generated"},
		{&m.invoicesSkipped, InvoicesSkippedTotal, "Loans skipped by an invoice run"},
		{&m.invoiceFailures, InvoiceFailuresTotal, "Loans that failed during an invoice run"},
	}
	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	m.invoiceRunTime, err = meter.Float64Histogram(
		InvoiceRunDuration,
		metric.WithDescription("Duration of invoice runs in seconds"),
		metric.WithUnit("s"),
	)
	return err
}

// Shutdown flushes and stops the exporter
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) RecordLoanCreated(interestType string) {
	m.loansCreated.Add(context.Background(), 1, metric.WithAttributes(attribute.String("interest_type", interestType)))
}

func (m *Metrics) RecordLoanTransition(status string) {
	m.loanTransitions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordPayment(kind string) {
	m.paymentsRecorded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordPaymentReversed() {
	m.paymentsReversed.Add(context.Background(), 1)
}

func (m *Metrics) RecordInvoiceRun(generated, skipped, failed int, elapsed time.Duration) {
	ctx := context.Background()
	m.invoicesGenerated.Add(ctx, int64(generated))
	m.invoicesSkipped.Add(ctx, int64(skipped))
	m.invoiceFailures.Add(ctx, int64(failed))
	m.invoiceRunTime.Record(ctx, elapsed.Seconds())
}
