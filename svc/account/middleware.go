package account

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

// DefaultUserHeader carries the authenticated user id set by the edge proxy.
const DefaultUserHeader = "X-User-ID"

// Middleware loads the user named by header into the request context.
// Requests without the header, or naming an unknown user, continue
// anonymously; handlers decide whether a user is required.
func Middleware(store Store, header string, log *slog.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultUserHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(header))
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, err := store.GetUser(r.Context(), id)
			switch {
			case err == nil:
				r = r.WithContext(WithUser(r.Context(), u))
			case errors.Is(err, ErrUserNotFound):
			default:
				log.ErrorContext(r.Context(), "failed to resolve user", logger.UserID(id), logger.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
