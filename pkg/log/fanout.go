package log

import (
	"context"
	"errors"
	"log/slog"
)

type fanout struct {
	handlers []slog.Handler
}

// Fanout returns a handler that passes every record to each of handlers that
// is enabled for its level.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return &fanout{handlers: handlers}
}

func (f *fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}

	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		err := h.Handle(ctx, r.Clone())
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h.WithAttrs(attrs))
	}

	return &fanout{handlers: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h.WithGroup(name))
	}

	return &fanout{handlers: hs}
}
