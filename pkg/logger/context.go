package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a record's context, such as
// the request id or the calling account.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler appends extractor attributes on every Handle call.
type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

// withExtractors returns next untouched when no extractor survives the nil filter.
func withExtractors(next slog.Handler, extractors []ContextExtractor) slog.Handler {
	kept := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			kept = append(kept, ex)
		}
	}
	if len(kept) == 0 {
		return next
	}
	return &contextHandler{Handler: next, extractors: kept}
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if ctx != nil {
		for _, ex := range h.extractors {
			if attr, ok := ex(ctx); ok {
				rec.AddAttrs(attr)
			}
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
