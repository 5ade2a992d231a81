// Package logging installs the process logger and logs compile and
// projection events from the event bus.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hanpama/selexp/internal/eventbus"
	"github.com/hanpama/selexp/internal/events"
	"github.com/hanpama/selexp/internal/reqid"
)

// New returns a logger writing to w. level is debug, info, warn or error;
// format is text or json.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Setup installs a logger as the slog default and subscribes it to the
// global event bus. The returned function removes the subscriptions.
func Setup(w io.Writer, level, format string) (func(), error) {
	logger, err := New(w, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return Attach(logger), nil
}

// Attach logs compile and projection events to logger.
func Attach(logger *slog.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
			if e.Err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "compile failed",
					runAttr(ctx), slog.String("type", e.Type), slog.Any("error", e.Err))
				return
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "compiled",
				runAttr(ctx), slog.String("type", e.Type), slog.Int("levels", e.Levels), slog.Duration("duration", e.Duration))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProjectStart) {
			logger.LogAttrs(ctx, slog.LevelDebug, "projecting",
				runAttr(ctx), slog.String("type", e.Type), slog.Bool("sequence", e.Sequence))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProjectFinish) {
			if e.Err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "projection failed",
					runAttr(ctx), slog.String("type", e.Type), slog.Int("views", e.Views), slog.Any("error", e.Err))
				return
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "projected",
				runAttr(ctx), slog.String("type", e.Type), slog.Int("views", e.Views), slog.Duration("duration", e.Duration))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func runAttr(ctx context.Context) slog.Attr {
	id, _ := reqid.FromContext(ctx)
	return slog.Int64("run", id)
}
