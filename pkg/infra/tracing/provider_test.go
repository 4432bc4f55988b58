package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	options "github.com/kart-io/docqa/pkg/options/tracing"
)

func TestNewOptions(t *testing.T) {
	opts := options.NewOptions()
	assert.False(t, opts.Enabled)
	assert.Equal(t, "docqa", opts.ServiceName)
	assert.Equal(t, options.ExporterOTLPGRPC, opts.ExporterType)
	assert.Equal(t, options.SamplerParentBased, opts.SamplerType)
	assert.Empty(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*options.Options)
		wantErr bool
	}{
		{"disabled is always valid", func(o *options.Options) { o.ExporterType = "bogus" }, false},
		{"enabled defaults", func(o *options.Options) { o.Enabled = true }, false},
		{"missing endpoint", func(o *options.Options) { o.Enabled = true; o.Endpoint = "" }, true},
		{"stdout needs no endpoint", func(o *options.Options) { o.Enabled = true; o.Endpoint = ""; o.ExporterType = options.ExporterStdout }, false},
		{"bad exporter", func(o *options.Options) { o.Enabled = true; o.ExporterType = "zipkin" }, true},
		{"bad sampler", func(o *options.Options) { o.Enabled = true; o.SamplerType = "sometimes" }, true},
		{"ratio out of range", func(o *options.Options) { o.Enabled = true; o.SamplerRatio = 1.5 }, true},
		{"zero batch size", func(o *options.Options) { o.Enabled = true; o.BatchMaxSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := options.NewOptions()
			tt.mutate(opts)
			if tt.wantErr {
				assert.NotEmpty(t, opts.Validate())
			} else {
				assert.Empty(t, opts.Validate())
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Noop(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.ExporterType = options.ExporterNoop

	p, err := NewProvider(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := StartSpan(context.Background(), "biz.test")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_InvalidOptions(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.SamplerType = "sometimes"

	_, err := NewProvider(context.Background(), opts)
	assert.Error(t, err)
}

func TestNewSampler(t *testing.T) {
	opts := options.NewOptions()
	for _, st := range []options.SamplerType{options.SamplerAlwaysOn, options.SamplerAlwaysOff, options.SamplerRatio, options.SamplerParentBased} {
		opts.SamplerType = st
		assert.NotNil(t, newSampler(opts))
	}
}

func TestRecordErrorAndTraceID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.NotEmpty(t, TraceID(ctx))
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)

	assert.Empty(t, TraceID(context.Background()))
}

func TestResourceAttributes(t *testing.T) {
	opts := options.NewOptions()
	opts.ResourceAttributes = map[string]string{"zone": "b", "cluster": "eu-1"}

	attrs := resourceAttributes(opts)
	require.Len(t, attrs, 5)
	assert.Equal(t, "service.name", string(attrs[0].Key))
	assert.Equal(t, "docqa", attrs[0].Value.AsString())
	assert.Equal(t, "cluster", string(attrs[3].Key), "附加属性按键排序")
	assert.Equal(t, "zone", string(attrs[4].Key))
}
