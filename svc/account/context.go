package account

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

type contextKey struct{}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the caller resolved by Middleware, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok && u != nil
}

// LoggerExtractor enriches log records with the caller's id.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if u, ok := FromContext(ctx); ok {
			return logger.UserID(u.ID), true
		}
		return slog.Attr{}, false
	}
}
