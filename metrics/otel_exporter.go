package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter               metric.Meter
	eventCountGauge     metric.Int64ObservableGauge
	executionCountGauge metric.Int64ObservableGauge
	deliveryCountGauge  metric.Int64ObservableGauge
	queueDepthGauge     metric.Int64ObservableGauge
	openBreakersGauge   metric.Int64ObservableGauge
	activeWorkersGauge  metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"webhook-gateway",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.eventCountGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.events.count",
		metric.WithDescription("Number of inbound events by status"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeEventCounts),
	)
	if err != nil {
		return fmt.Errorf("creating event count gauge: %w", err)
	}

	oe.executionCountGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.executions.count",
		metric.WithDescription("Number of handler execution records by status"),
		metric.WithUnit("{executions}"),
		metric.WithInt64Callback(oe.observeExecutionCounts),
	)
	if err != nil {
		return fmt.Errorf("creating execution count gauge: %w", err)
	}

	oe.deliveryCountGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.deliveries.count",
		metric.WithDescription("Number of outbound deliveries by status"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeDeliveryCounts),
	)
	if err != nil {
		return fmt.Errorf("creating delivery count gauge: %w", err)
	}

	oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.queue.depth",
		metric.WithDescription("Number of scheduled tasks in the delayed queue"),
		metric.WithUnit("{tasks}"),
		metric.WithInt64Callback(oe.observeQueueDepth),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	oe.openBreakersGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.breakers.open",
		metric.WithDescription("Number of endpoints with an open circuit breaker"),
		metric.WithUnit("{endpoints}"),
		metric.WithInt64Callback(oe.observeOpenBreakers),
	)
	if err != nil {
		return fmt.Errorf("creating open breakers gauge: %w", err)
	}

	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"gateway.workers.active",
		metric.WithDescription("Number of worker processes with a live heartbeat"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	return nil
}

// observeEventCounts is a callback that reports inbound event counts
func (oe *OTelExporter) observeEventCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetEventCounts(ctx)
	if err != nil {
		return err
	}

	for status, count := range counts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("event.status", status),
		))
	}

	return nil
}

// observeExecutionCounts is a callback that reports execution record counts
func (oe *OTelExporter) observeExecutionCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetExecutionCounts(ctx)
	if err != nil {
		return err
	}

	for status, count := range counts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("execution.status", status),
		))
	}

	return nil
}

// observeDeliveryCounts is a callback that reports outbound delivery counts
func (oe *OTelExporter) observeDeliveryCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetDeliveryCounts(ctx)
	if err != nil {
		return err
	}

	for status, count := range counts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("delivery.status", status),
		))
	}

	return nil
}

// observeQueueDepth is a callback that reports the delayed queue depth
func (oe *OTelExporter) observeQueueDepth(ctx context.Context, observer metric.Int64Observer) error {
	depth, err := oe.collector.GetQueueDepth(ctx)
	if err != nil {
		return err
	}

	observer.Observe(depth)
	return nil
}

// observeOpenBreakers is a callback that reports open breaker counts
func (oe *OTelExporter) observeOpenBreakers(ctx context.Context, observer metric.Int64Observer) error {
	open, err := oe.collector.GetOpenBreakers(ctx)
	if err != nil {
		return err
	}

	observer.Observe(open)
	return nil
}

// observeActiveWorkers is a callback that reports live worker counts
func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	active, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}

	observer.Observe(active)
	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
