package levels

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/levelqueue/handler"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

var errInvalidToken = errors.New("invalid or missing internal API token")

var (
	unauthorized = []error{level.ErrNotFullAccount, level.ErrNotPro}
	notFound     = []error{level.ErrLevelNotFound}
	badRequest   = []error{
		level.ErrInvalidPublishDate,
		level.ErrPublishAtInPast,
		level.ErrPublishAtTooFar,
		level.ErrNotDraft,
		level.ErrAlreadyScheduled,
		level.ErrNotScheduled,
		level.ErrLevelScheduled,
		level.ErrPublishInProgress,
		level.ErrValidation,
	}
)

// httpError maps a workflow error to its HTTP status. Unknown errors pass
// through unchanged and render as 500.
func httpError(err error) error {
	switch {
	case isAny(err, unauthorized):
		return handler.NewHTTPError(http.StatusUnauthorized, err)
	case isAny(err, notFound):
		return handler.NewHTTPError(http.StatusNotFound, err)
	case isAny(err, badRequest):
		return handler.NewHTTPError(http.StatusBadRequest, err)
	}
	return err
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// fail renders err as a JSON error, logging anything that maps to 500.
func (m *Module) fail(ctx handler.Context, err error) handler.Response {
	mapped := httpError(err)
	var httpErr handler.HTTPError
	if !errors.As(mapped, &httpErr) {
		r := ctx.Request()
		m.logger.ErrorContext(ctx, "request failed",
			logger.Error(err),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	return handler.JSONError(mapped)
}
