package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a record's context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler appends extractor attributes to every record before passing
// it on. Extractors see the context given to the *Context logging methods.
type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

// withExtractors wraps next unless there is nothing to extract.
func withExtractors(next slog.Handler, extractors []ContextExtractor) slog.Handler {
	var live []ContextExtractor
	for _, ex := range extractors {
		if ex != nil {
			live = append(live, ex)
		}
	}
	if len(live) == 0 {
		return next
	}
	return &contextHandler{Handler: next, extractors: live}
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
