// Package otel exports compile and projection spans over OTLP.
package otel

import (
	"context"
	"sync"
	"time"

	"github.com/hanpama/selexp/internal/eventbus"
	"github.com/hanpama/selexp/internal/events"
	"github.com/hanpama/selexp/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

const instrumentation = "github.com/hanpama/selexp"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)
	unsubscribe := Attach(tp)

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach subscribes span recording on the global event bus using tp.
func Attach(tp trace.TracerProvider) (unsubscribe func()) {
	s := &subscriber{tracer: tp.Tracer(instrumentation)}
	return s.register()
}

type subscriber struct {
	tracer       trace.Tracer
	projectSpans sync.Map // rid -> trace.Span
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
			end := time.Now()
			_, span := s.tracer.Start(ctx, "selexp.compile", trace.WithTimestamp(end.Add(-e.Duration)))
			span.SetAttributes(
				attribute.String("selexp.type", e.Type),
				attribute.Int("selexp.levels", e.Levels),
			)
			finish(span, e.Err, trace.WithTimestamp(end))
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ProjectStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "selexp.project")
			span.SetAttributes(
				attribute.String("selexp.type", e.Type),
				attribute.Bool("selexp.sequence", e.Sequence),
			)
			s.projectSpans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ProjectFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.projectSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("selexp.views", e.Views))
			finish(span, e.Err)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func finish(span trace.Span, err error, opts ...trace.SpanEndOption) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(opts...)
}
