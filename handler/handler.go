package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/levelqueue/pkg/binder"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

// HandlerFunc provides type-safe HTTP request handling with custom context
// support. C must implement Context, R can be any request type.
//
//	handler := handler.HandlerFunc[handler.Context, ScheduleRequest](
//		func(ctx handler.Context, req ScheduleRequest) handler.Response {
//			at, err := scheduler.Schedule(ctx, user, req.LevelID, req.PublishAt)
//			if err != nil {
//				return handler.JSONError(err)
//			}
//			return handler.JSON(ScheduleResponse{PublishAt: at})
//		},
//	)
type HandlerFunc[C Context, R any] func(ctx C, req R) Response

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind parses HTTP requests into typed values.
type Bind func(r *http.Request, v any) error

// ErrorHandler handles errors from binding or rendering.
type ErrorHandler[C Context] func(ctx C, err error)

// Decorator wraps a HandlerFunc to add cross-cutting behavior. The first
// decorator in a list is the outermost wrapper.
type Decorator[C Context, R any] func(HandlerFunc[C, R]) HandlerFunc[C, R]

// WrapOption configures Wrap.
type WrapOption[C Context, R any] func(*wrapConfig[C, R])

type wrapConfig[C Context, R any] struct {
	binders        []Bind
	errorHandler   ErrorHandler[C]
	contextFactory func(http.ResponseWriter, *http.Request) C
	decorators     []Decorator[C, R]
}

// WithBinders appends request binders, applied in order.
// Binders returning binder.ErrBinderNotApplicable are skipped.
func WithBinders[C Context, R any](binders ...Bind) WrapOption[C, R] {
	return func(c *wrapConfig[C, R]) {
		c.binders = append(c.binders, binders...)
	}
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler[C Context, R any](h ErrorHandler[C]) WrapOption[C, R] {
	return func(c *wrapConfig[C, R]) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithContextFactory sets a custom context factory.
func WithContextFactory[C Context, R any](f func(http.ResponseWriter, *http.Request) C) WrapOption[C, R] {
	return func(c *wrapConfig[C, R]) {
		if f != nil {
			c.contextFactory = f
		}
	}
}

// WithDecorators adds decorators around the handler.
func WithDecorators[C Context, R any](decorators ...Decorator[C, R]) WrapOption[C, R] {
	return func(c *wrapConfig[C, R]) {
		c.decorators = append(c.decorators, decorators...)
	}
}

// NewErrorHandler returns an ErrorHandler that renders JSONError and logs
// server-side failures. Binding errors that are not an HTTPError are
// reported as 400.
func NewErrorHandler[C Context](log *slog.Logger) ErrorHandler[C] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx C, err error) {
		r := ctx.Request()
		if isBindError(err) {
			var httpErr HTTPError
			if !errors.As(err, &httpErr) {
				err = NewHTTPError(http.StatusBadRequest, err)
			}
		}

		status, _ := statusOf(err)
		if status >= http.StatusInternalServerError {
			log.ErrorContext(ctx, "request failed",
				logger.Error(err),
				slog.Int("status_code", status),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}

		if renderErr := JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(ctx, "failed to render error response", logger.Error(renderErr))
		}
	}
}

func isBindError(err error) bool {
	return errors.Is(err, binder.ErrInvalidJSON) ||
		errors.Is(err, binder.ErrInvalidPath) ||
		errors.Is(err, binder.ErrMissingContentType) ||
		errors.Is(err, binder.ErrUnsupportedMediaType)
}

// Wrap converts a typed HandlerFunc to http.HandlerFunc.
//
//	r.Post("/api/publish/{levelId}", handler.Wrap(publish,
//		handler.WithBinders[handler.Context, LevelRequest](binder.Path(chi.URLParam)),
//		handler.WithErrorHandler[handler.Context, LevelRequest](errHandler),
//	))
//
// A custom context type requires WithContextFactory.
func Wrap[C Context, R any](h HandlerFunc[C, R], opts ...WrapOption[C, R]) http.HandlerFunc {
	cfg := &wrapConfig[C, R]{
		errorHandler: NewErrorHandler[C](nil),
		contextFactory: func(w http.ResponseWriter, r *http.Request) C {
			if c, ok := any(NewContext(w, r)).(C); ok {
				return c
			}
			panic("handler: default context factory cannot build custom context type, use WithContextFactory")
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	final := h
	for i := len(cfg.decorators) - 1; i >= 0; i-- {
		final = cfg.decorators[i](final)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := cfg.contextFactory(w, r)

		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				if errors.Is(err, binder.ErrBinderNotApplicable) {
					continue
				}
				cfg.errorHandler(ctx, err)
				return
			}
		}

		response := final(ctx, req)
		if response == nil {
			cfg.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := response.Render(w, r); err != nil {
			cfg.errorHandler(ctx, err)
		}
	}
}
