package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the otel meter and tracer providers for one process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
}

// Option configures New.
type Option func(*options)

type options struct {
	registerer promclient.Registerer
	spans      []sdktrace.SpanProcessor
}

// WithRegisterer registers the otel collector with reg instead of the
// default prometheus registry.
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanProcessor attaches a span processor, such as a tracetest recorder.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spans = append(o.spans, sp) }
}

// New sets up the prometheus-backed meter provider and an sdk tracer
// provider, and installs both globally. If the exporter cannot be created
// the returned value still works but records nothing.
func New(serviceName string, opts ...Option) (*Observability, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var exporterOpts []prometheus.Option
	if o.registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(o.registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return &Observability{
			meter:  otel.GetMeterProvider().Meter(serviceName),
			tracer: otel.Tracer(serviceName),
		}, err
	}

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	tpOpts := make([]sdktrace.TracerProviderOption, 0, len(o.spans))
	for _, sp := range o.spans {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	meter := mp.Meter(serviceName)

	runCounter, _ := meter.Int64Counter(
		"pipeline_outcomes",
		otelmetric.WithDescription("Number of pipeline runs"),
	)
	runDuration, _ := meter.Float64Histogram(
		"pipeline_run_duration",
		otelmetric.WithDescription("Pipeline run duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		meter:          meter,
		tracer:         tp.Tracer(serviceName),
		runCounter:     runCounter,
		runDuration:    runDuration,
	}, nil
}

// Tracer returns the process tracer. It is never nil.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("statusai")
	}
	return o.tracer
}

// RecordRun implements the pipeline run recorder.
func (o *Observability) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
