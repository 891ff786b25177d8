// Package tracing provides OpenTelemetry-based distributed tracing infrastructure.
// It supports multiple exporters (stdout, OTLP) and provides domain-specific
// span helpers for sync cycles, remote requests, and chat completions.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the name used for the moneta tracer.
	TracerName = "github.com/monetalabs/moneta"

	// Version is the semantic version of the tracer.
	Version = "1.0.0"
)

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Enabled      bool         // Whether tracing is enabled
	ExporterType ExporterType // Type of exporter to use
	OTLPEndpoint string       // OTLP collector endpoint (for OTLP exporter)
	ServiceName  string       // Service name for traces
	Environment  string       // Deployment environment (development, production)
	SampleRate   float64      // Sampling rate (0.0 to 1.0)
	Output       io.Writer    // Output for stdout exporter (defaults to os.Stdout)
}

// DefaultConfig returns sensible default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ExporterType: ExporterNone,
		ServiceName:  "moneta",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with domain-specific functionality.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

// global is the package-level default tracer.
var (
	global     *Tracer
	globalOnce sync.Once
)

// Init initializes the global tracer with the provided configuration.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	var err error
	globalOnce.Do(func() {
		global, err = New(ctx, cfg)
	})
	return global, err
}

// Default returns the global tracer, or a no-op tracer if not initialized.
func Default() *Tracer {
	if global == nil {
		return &Tracer{
			tracer: otel.Tracer(TracerName),
			config: DefaultConfig(),
		}
	}
	return global
}

// New creates a new Tracer with the provided configuration.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			config: cfg,
		}, nil
	}

	// Create exporter
	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	// Create resource without merging with Default() to avoid schema URL conflicts.
	// The default resource's schema URL may conflict with our semconv version.
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create tracer provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set global tracer provider
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}, nil
}

// createExporter creates the appropriate exporter based on configuration.
func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{
			stdouttrace.WithPrettyPrint(),
		}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(),
		}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown gracefully shuts down the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Domain-specific span helpers ---

// CycleSpan represents a full sync cycle span.
type CycleSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartCycleSpan starts a span for a sync cycle.
func (t *Tracer) StartCycleSpan(ctx context.Context, cycleID, direction string) (context.Context, *CycleSpan) {
	ctx, span := t.tracer.Start(ctx, "sync.cycle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sync.cycle_id", cycleID),
			attribute.String("sync.direction", direction),
		),
	)

	return ctx, &CycleSpan{span: span, ctx: ctx}
}

// SetUser sets the authenticated user for this cycle.
func (cs *CycleSpan) SetUser(userID string) {
	cs.span.SetAttributes(attribute.String("sync.user_id", userID))
}

// SetCounts sets the record outcome counters for this cycle.
func (cs *CycleSpan) SetCounts(synced, failed int) {
	cs.span.SetAttributes(
		attribute.Int("sync.records.synced", synced),
		attribute.Int("sync.records.failed", failed),
	)
}

// End ends the cycle span with success status.
func (cs *CycleSpan) End() {
	cs.span.SetStatus(codes.Ok, "sync cycle completed")
	cs.span.End()
}

// EndAborted ends the cycle span when a precondition stops the cycle
// before any records are processed.
func (cs *CycleSpan) EndAborted(reason string) {
	cs.span.SetAttributes(attribute.String("sync.abort_reason", reason))
	cs.span.SetStatus(codes.Ok, "sync cycle aborted")
	cs.span.End()
}

// EndWithError ends the cycle span with error status.
func (cs *CycleSpan) EndWithError(err error) {
	cs.span.RecordError(err)
	cs.span.SetStatus(codes.Error, err.Error())
	cs.span.End()
}

// KindSpan represents the processing of one entity kind within a cycle.
type KindSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartKindSpan starts a span for pushing or pulling one entity kind.
func (t *Tracer) StartKindSpan(ctx context.Context, kind, direction string) (context.Context, *KindSpan) {
	ctx, span := t.tracer.Start(ctx, "sync.kind",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sync.kind", kind),
			attribute.String("sync.direction", direction),
		),
	)

	return ctx, &KindSpan{span: span, ctx: ctx}
}

// SetPending sets the number of records queued for this kind.
func (ks *KindSpan) SetPending(count int) {
	ks.span.SetAttributes(attribute.Int("sync.kind.pending", count))
}

// SetCounts sets the per-kind outcome counters.
func (ks *KindSpan) SetCounts(synced, failed int) {
	ks.span.SetAttributes(
		attribute.Int("sync.kind.synced", synced),
		attribute.Int("sync.kind.failed", failed),
	)
}

// End ends the kind span with success status.
func (ks *KindSpan) End() {
	ks.span.SetStatus(codes.Ok, "kind sync completed")
	ks.span.End()
}

// EndWithError ends the kind span with error status.
func (ks *KindSpan) EndWithError(err error) {
	ks.span.RecordError(err)
	ks.span.SetStatus(codes.Error, err.Error())
	ks.span.End()
}

// RequestSpan represents a single cloud store HTTP request.
type RequestSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartRequestSpan starts a span for a remote store request.
func (t *Tracer) StartRequestSpan(ctx context.Context, method, collection string) (context.Context, *RequestSpan) {
	ctx, span := t.tracer.Start(ctx, "remote.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("remote.method", method),
			attribute.String("remote.collection", collection),
		),
	)

	return ctx, &RequestSpan{span: span, ctx: ctx}
}

// SetStatusCode records the HTTP status of the response.
func (rs *RequestSpan) SetStatusCode(code int) {
	rs.span.SetAttributes(attribute.Int("remote.status_code", code))
}

// SetRetries records how many retries the request took.
func (rs *RequestSpan) SetRetries(retries int) {
	rs.span.SetAttributes(attribute.Int("remote.retries", retries))
}

// End ends the request span with success status.
func (rs *RequestSpan) End() {
	rs.span.SetStatus(codes.Ok, "remote request completed")
	rs.span.End()
}

// EndWithError ends the request span with error status.
func (rs *RequestSpan) EndWithError(err error) {
	rs.span.RecordError(err)
	rs.span.SetStatus(codes.Error, err.Error())
	rs.span.End()
}

// ChatSpan represents a chat completion request span.
type ChatSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartChatSpan starts a span for a chat completion request.
func (t *Tracer) StartChatSpan(ctx context.Context, provider, model string) (context.Context, *ChatSpan) {
	ctx, span := t.tracer.Start(ctx, "chat.completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("chat.provider", provider),
			attribute.String("chat.model", model),
		),
	)

	return ctx, &ChatSpan{span: span, ctx: ctx}
}

// SetFallback marks that the fallback provider served this request.
func (cs *ChatSpan) SetFallback(fallback bool) {
	cs.span.SetAttributes(attribute.Bool("chat.fallback", fallback))
}

// End ends the chat span with success status.
func (cs *ChatSpan) End() {
	cs.span.SetStatus(codes.Ok, "chat completion completed")
	cs.span.End()
}

// EndWithError ends the chat span with error status.
func (cs *ChatSpan) EndWithError(err error) {
	cs.span.RecordError(err)
	cs.span.SetStatus(codes.Error, err.Error())
	cs.span.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
}

// SetAttribute sets an attribute on the current span.
func SetAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}
