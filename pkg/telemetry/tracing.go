package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "candyshop/pipeline"

// TracingOptions configures span export.
type TracingOptions struct {
	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317"). When
	// empty spans are still created but only go to SpanProcessor.
	Endpoint string

	// ServiceName is the service name for traces (default: "candyshop").
	ServiceName string

	// Insecure uses insecure connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// SpanProcessor receives every finished span in addition to the
	// exporter. Tests use it with tracetest.SpanRecorder.
	SpanProcessor sdktrace.SpanProcessor

	// ShutdownTimeout bounds the final flush (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter creation (default: 10s).
	ConnectionTimeout time.Duration
}

// Tracing owns a tracer provider for one run.
type Tracing struct {
	opts     TracingOptions
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracing builds a tracer provider. It does not install it globally;
// call Install for that.
func NewTracing(opts TracingOptions) (*Tracing, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = 10 * time.Second
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "pipeline"),
	)

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if opts.Endpoint != "" {
		exporter, err := newExporter(opts)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	if opts.SpanProcessor != nil {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(opts.SpanProcessor))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	return &Tracing{
		opts:     opts,
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

func newExporter(opts TracingOptions) (*otlptrace.Exporter, error) {
	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()
	return otlptracegrpc.New(ctx, exporterOpts...)
}

// Tracer returns the pipeline tracer.
func (t *Tracing) Tracer() trace.Tracer {
	return t.tracer
}

// Install sets the provider as the global OpenTelemetry provider.
func (t *Tracing) Install() {
	otel.SetTracerProvider(t.provider)
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.ShutdownTimeout)
	defer cancel()
	return t.provider.Shutdown(ctx)
}

// Tracer returns the global pipeline tracer, a no-op until a provider
// is installed.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
