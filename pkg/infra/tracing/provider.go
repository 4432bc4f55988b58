// Package tracing wires OpenTelemetry into docqa: provider setup, exporters
// and span helpers.
package tracing

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	options "github.com/kart-io/docqa/pkg/options/tracing"
)

// Provider owns the SDK tracer provider. A disabled Provider is a no-op and
// leaves the global provider untouched, so StartSpan yields non-recording spans.
type Provider struct {
	tp *sdktrace.TracerProvider
}

type exporterFactory func(ctx context.Context, opts *options.Options) (sdktrace.SpanExporter, error)

var exporters = map[options.ExporterType]exporterFactory{
	options.ExporterOTLPGRPC: func(ctx context.Context, opts *options.Options) (sdktrace.SpanExporter, error) {
		o := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint), otlptracegrpc.WithHeaders(opts.Headers)}
		if opts.Insecure {
			o = append(o, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(o...))
	},
	options.ExporterOTLPHTTP: func(ctx context.Context, opts *options.Options) (sdktrace.SpanExporter, error) {
		o := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint), otlptracehttp.WithHeaders(opts.Headers)}
		if opts.Insecure {
			o = append(o, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(o...))
	},
	options.ExporterStdout: func(context.Context, *options.Options) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	},
	options.ExporterNoop: func(context.Context, *options.Options) (sdktrace.SpanExporter, error) {
		return discardExporter{}, nil
	},
}

// NewProvider builds the tracer provider and installs it globally together
// with the W3C trace-context and baggage propagators.
func NewProvider(ctx context.Context, opts *options.Options) (*Provider, error) {
	if opts == nil {
		opts = options.NewOptions()
	}
	if err := opts.Complete(); err != nil {
		return nil, fmt.Errorf("failed to complete tracing options: %w", err)
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("invalid tracing options: %w", err)
	}
	if !opts.Enabled {
		return &Provider{}, nil
	}

	newExporter, ok := exporters[opts.ExporterType]
	if !ok {
		return nil, fmt.Errorf("unsupported exporter type: %s", opts.ExporterType)
	}
	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", opts.ExporterType, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(resourceAttributes(opts)...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(opts)),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(opts.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(opts.BatchMaxSize),
			sdktrace.WithExportTimeout(opts.ExportTimeout),
			sdktrace.WithMaxQueueSize(opts.MaxQueueSize),
		),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Provider{tp: tp}, nil
}

// resourceAttributes 服务标识加上配置的附加属性，按键排序。
func resourceAttributes(opts *options.Options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
	}

	keys := make([]string, 0, len(opts.ResourceAttributes))
	for k := range opts.ResourceAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, opts.ResourceAttributes[k]))
	}
	return attrs
}

func newSampler(opts *options.Options) sdktrace.Sampler {
	switch opts.SamplerType {
	case options.SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case options.SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case options.SamplerRatio:
		return sdktrace.TraceIDRatioBased(opts.SamplerRatio)
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplerRatio))
	}
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown exports buffered spans, then stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return utilerrors.NewAggregate([]error{p.tp.ForceFlush(ctx), p.tp.Shutdown(ctx)})
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                             { return nil }
