package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ssw-alert-watcher/pkg/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultMaxBatchSize = 512
)

// TracingManager manages distributed tracing
type TracingManager struct {
	config   types.TracingConfig
	version  string
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracingManager creates a new tracing manager. When tracing is
// disabled the manager hands out a noop tracer and exports nothing.
func NewTracingManager(config types.TracingConfig, version string, logger *logrus.Logger) (*TracingManager, error) {
	tm := &TracingManager{
		config:  config,
		version: version,
		logger:  logger,
	}

	if !config.Enabled {
		tm.tracer = noop.NewTracerProvider().Tracer(config.ServiceName)
		return tm, nil
	}

	if err := tm.initialize(); err != nil {
		return nil, err
	}
	return tm, nil
}

// initialize sets up the tracing provider
func (tm *TracingManager) initialize() error {
	exporter, err := tm.createExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tm.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(defaultBatchTimeout),
			trace.WithMaxExportBatchSize(defaultMaxBatchSize),
		),
		trace.WithResource(tm.createResource()),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(tm.config.SampleRate))),
	)

	otel.SetTracerProvider(tm.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tm.tracer = tm.provider.Tracer(tm.config.ServiceName)

	tm.logger.WithFields(logrus.Fields{
		"service_name": tm.config.ServiceName,
		"exporter":     tm.config.Exporter,
		"endpoint":     tm.config.Endpoint,
		"sample_rate":  tm.config.SampleRate,
	}).Info("Distributed tracing initialized")

	return nil
}

// createExporter creates the appropriate trace exporter
func (tm *TracingManager) createExporter() (trace.SpanExporter, error) {
	switch tm.config.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(tm.config.Endpoint)))

	case "otlp", "":
		// o cliente HTTP só conecta no primeiro export
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpointURL(tm.config.Endpoint),
		))

	default:
		return nil, fmt.Errorf("unsupported exporter: %s", tm.config.Exporter)
	}
}

func (tm *TracingManager) createResource() *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", tm.config.ServiceName),
		attribute.String("service.version", tm.version),
	)
}

// GetTracer returns the tracer instance
func (tm *TracingManager) GetTracer() oteltrace.Tracer {
	return tm.tracer
}

// IsEnabled reports whether spans are exported.
func (tm *TracingManager) IsEnabled() bool {
	return tm.provider != nil
}

// Shutdown flushes pending spans and stops the exporter
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider != nil {
		return tm.provider.Shutdown(ctx)
	}
	return nil
}

// TraceHandler is a middleware for HTTP tracing
func TraceHandler(tracer oteltrace.Tracer, operationName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, operationName, oteltrace.WithSpanKind(oteltrace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("user_agent.original", r.UserAgent()),
				attribute.String("client.address", r.RemoteAddr),
			)

			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractTraceInfo extracts trace information from context
func ExtractTraceInfo(ctx context.Context) (traceID, spanID string) {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		spanID = span.SpanContext().SpanID().String()
	}
	return
}

// LogFields returns trace_id/span_id fields for a logrus entry, or nil
// when ctx carries no sampled span.
func LogFields(ctx context.Context) logrus.Fields {
	traceID, spanID := ExtractTraceInfo(ctx)
	if traceID == "" {
		return nil
	}
	return logrus.Fields{"trace_id": traceID, "span_id": spanID}
}
