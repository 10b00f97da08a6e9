// Package tracing configures OpenTelemetry for scrdec. Spans can be copied
// to a local JSONL file and gRPC handlers are instrumented by interceptor.
package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/RowanDark/scrdec"
	defaultServiceName  = "scrdec"
	shutdownTimeout     = 5 * time.Second
)

// Config selects sampling and the optional span file.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio is clamped to [0,1]; 0 leaves tracing off.
	SampleRatio float64
	// FilePath receives a JSONL copy of every exported span when set.
	FilePath string
}

func (c Config) ratio() float64 {
	return min(max(c.SampleRatio, 0), 1)
}

func (c Config) resourceAttrs() []attribute.KeyValue {
	name := strings.TrimSpace(c.ServiceName)
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if v := strings.TrimSpace(c.ServiceVersion); v != "" {
		attrs = append(attrs, semconv.ServiceVersion(v))
	}
	return attrs
}

// Setup installs the global tracer provider and W3C propagators. Call the
// returned function before exit to flush pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	ratio := cfg.ratio()
	if ratio == 0 {
		return func(context.Context) error { return nil }, nil
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithTelemetrySDK(),
		sdkresource.WithAttributes(cfg.resourceAttrs()...),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		sink, err := openSpanFile(path)
		if err != nil {
			return nil, fmt.Errorf("open span file: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(sink))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}, nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts an internal span under ctx.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// TraceIDFromContext returns the hex trace id of the active span, or "".
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
