package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const instrumentationName = "github.com/webitel/im-realtime-gateway"

type Settings struct {
	ServiceName string
	NodeID      string
	// Endpoint is an OTLP/HTTP URL. Empty keeps tracing local and unexported.
	Endpoint    string
	SampleRatio float64
}

// NewTracerProvider builds the SDK provider. Without an endpoint spans are
// still created so that trace ids reach bus metadata, but nothing is exported.
func NewTracerProvider(ctx context.Context, s Settings) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.ServiceName),
			semconv.ServiceInstanceID(s.NodeID),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))),
	}
	if s.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newTracer(lc fx.Lifecycle, s Settings, logger *slog.Logger) (trace.Tracer, error) {
	tp, err := NewTracerProvider(context.Background(), s)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("TRACING_CONFIGURED",
		slog.Bool("export", s.Endpoint != ""),
		slog.Float64("sample_ratio", s.SampleRatio))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp.Tracer(instrumentationName), nil
}

var Module = fx.Module("otel",
	fx.Provide(newTracer),
)
