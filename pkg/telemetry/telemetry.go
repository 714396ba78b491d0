// Package telemetry provides OpenTelemetry distributed tracing for Nucleus.
// It provides span helpers for IPC requests, provider calls, vector store
// queries, and plugin execution, supports W3C Trace Context propagation,
// and exports to OTLP or stdout. The packages that perform those
// operations do not call the span helpers.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Cooksey99/nucleus"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	// 1.0 = sample everything, 0.1 = sample 10%.
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "nucleus",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes Nucleus-specific
// span helpers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		// Return a no-op provider
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.2.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the Nucleus tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// --- Span helpers for runtime stages ---

// StartRequest creates a root span for an incoming IPC request.
func (p *Provider) StartRequest(ctx context.Context, requestType string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "nucleus.request",
		trace.WithAttributes(attribute.String("nucleus.request.type", requestType)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartProviderChat creates a span for one provider chat turn.
func (p *Provider) StartProviderChat(ctx context.Context, backend, model string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "nucleus.provider.chat",
		trace.WithAttributes(
			attribute.String("nucleus.provider.backend", backend),
			attribute.String("nucleus.provider.model", model),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartEmbedding creates a span for an embedding call.
func (p *Provider) StartEmbedding(ctx context.Context, textCount int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "nucleus.embedding",
		trace.WithAttributes(attribute.Int("nucleus.embedding.text_count", textCount)),
	)
}

// StartVectorSearch creates a span for a vector store similarity search.
func (p *Provider) StartVectorSearch(ctx context.Context, topK int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "nucleus.vectorstore.search",
		trace.WithAttributes(attribute.Int("nucleus.vectorstore.top_k", topK)),
	)
}

// StartIndexDirectory creates a span for a full directory indexing run.
func (p *Provider) StartIndexDirectory(ctx context.Context, root string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "nucleus.indexer.index_directory",
		trace.WithAttributes(attribute.String("nucleus.indexer.root", root)),
	)
}

// StartToolCall creates a span for one plugin invocation.
func (p *Provider) StartToolCall(ctx context.Context, plugin string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "nucleus.plugin.execute",
		trace.WithAttributes(attribute.String("nucleus.plugin.name", plugin)),
	)
}

// RecordChatResult adds result attributes to a provider chat span.
func RecordChatResult(span trace.Span, toolCallCount int, latency time.Duration) {
	span.SetAttributes(
		attribute.Int("nucleus.provider.tool_call_count", toolCallCount),
		attribute.Int64("nucleus.provider.latency_ms", latency.Milliseconds()),
	)
}

// RecordSearchResult adds result attributes to a vector search span.
func RecordSearchResult(span trace.Span, resultCount int) {
	span.SetAttributes(attribute.Int("nucleus.vectorstore.result_count", resultCount))
}

// RecordIndexResult adds result attributes to an indexing span.
func RecordIndexResult(span trace.Span, filesScanned, filesIndexed, chunksAdded int) {
	span.SetAttributes(
		attribute.Int("nucleus.indexer.files_scanned", filesScanned),
		attribute.Int("nucleus.indexer.files_indexed", filesIndexed),
		attribute.Int("nucleus.indexer.chunks_added", chunksAdded),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
