// Package otelx configures the global OpenTelemetry tracer provider. Spans are
// exported over OTLP/gRPC when enabled; either way URL queries are passed
// through a redactor before any exporter sees them.
package otelx

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

type Options struct {
	Enabled   bool
	Endpoint  string
	Insecure  bool
	Sample    float64
	Service   string
	Component string
	Version   string

	// RedactQuery rewrites a raw query string before it is stored on a span.
	// nil drops queries entirely.
	RedactQuery func(string) string
	// RedactPath rewrites a URL path before it is stored on a span. nil keeps
	// paths as they are.
	RedactPath func(string) string
}

func Init(ctx context.Context, o Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !o.Enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider(providerOptions(o)...))
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	// the exporter dial blocks without a deadline; the collector is local
	dialCtx, dialCancel := context.WithTimeout(ctx, 3*time.Second)
	defer dialCancel()
	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "otlp exporter %s", o.Endpoint)
	}

	res, _ := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(o.Service+"."+o.Component),
			semconv.ServiceVersionKey.String(o.Version),
		),
	)

	tp := sdktrace.NewTracerProvider(append(providerOptions(o),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(o.Sample),
		)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)...)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// providerOptions are shared by the enabled and disabled providers. The
// redactor is registered first so later processors only see redacted values.
func providerOptions(o Options) []sdktrace.TracerProviderOption {
	return []sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(newRedactor(o.RedactQuery, o.RedactPath)),
	}
}

// attributes that can carry a raw path or query string
var (
	queryKey  = attribute.Key("url.query")
	pathKey   = attribute.Key("url.path")
	urlKeys   = []attribute.Key{"url.full", "http.target", "http.url"}
	dropQuery = func(string) string { return "" }
	keepPath  = func(p string) string { return p }
)

type redactor struct {
	redact     func(string) string
	redactPath func(string) string
}

func newRedactor(query, path func(string) string) *redactor {
	if query == nil {
		query = dropQuery
	}
	if path == nil {
		path = keepPath
	}
	return &redactor{redact: query, redactPath: path}
}

func (p *redactor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	for _, kv := range s.Attributes() {
		switch {
		case kv.Key == queryKey:
			s.SetAttributes(queryKey.String(p.redact(kv.Value.AsString())))
		case kv.Key == pathKey:
			s.SetAttributes(pathKey.String(p.redactPath(kv.Value.AsString())))
		case isURLKey(kv.Key):
			s.SetAttributes(kv.Key.String(p.redactURL(kv.Value.AsString())))
		}
	}
}

func (p *redactor) redactURL(u string) string {
	base, query, ok := strings.Cut(u, "?")
	base = p.redactPath(base)
	if !ok {
		return base
	}
	if q := p.redact(query); q != "" {
		return base + "?" + q
	}
	return base
}

func isURLKey(k attribute.Key) bool {
	for _, u := range urlKeys {
		if k == u {
			return true
		}
	}
	return false
}

func (p *redactor) OnEnd(sdktrace.ReadOnlySpan)      {}
func (p *redactor) Shutdown(context.Context) error   { return nil }
func (p *redactor) ForceFlush(context.Context) error { return nil }
