package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/selexp/internal/eventbus"
	"github.com/hanpama/selexp/internal/events"
	"github.com/hanpama/selexp/internal/reqid"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "selexp")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSpansFollowEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := Attach(tp)
	defer unsubscribe()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.CompileFinish{Type: "Customer", Levels: 2, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.ProjectStart{Type: "Customer", Sequence: true})
	eventbus.Publish(ctx, events.ProjectFinish{Type: "Customer", Sequence: true, Views: 3, Err: errors.New("boom")})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "selexp.compile", spans[0].Name())
	require.Equal(t, "selexp.project", spans[1].Name())
	require.Equal(t, codes.Error, spans[1].Status().Code)

	// A finish without a matching start is ignored.
	other, _ := reqid.NewContext(context.Background())
	eventbus.Publish(other, events.ProjectFinish{Type: "Customer"})
	require.Len(t, rec.Ended(), 2)
}
