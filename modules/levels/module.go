package levels

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/levelqueue/handler"
	"github.com/dmitrymomot/levelqueue/pkg/binder"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

// Module serves the level publishing API.
type Module struct {
	publisher *level.Publisher
	scheduler *level.Scheduler
	runner    queue.CycleRunner
	accounts  account.Store
	cfg       Config
	logger    *slog.Logger
}

// Option configures a Module.
type Option func(*Module)

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

func New(publisher *level.Publisher, scheduler *level.Scheduler, runner queue.CycleRunner, accounts account.Store, cfg Config, opts ...Option) *Module {
	m := &Module{
		publisher: publisher,
		scheduler: scheduler,
		runner:    runner,
		accounts:  accounts,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.DraftsPath == "" {
		m.cfg.DraftsPath = "/drafts"
	}
	m.logger = m.logger.With(logger.Component("levels-api"))
	return m
}

// Handle returns the module router.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()
	path := binder.Path(chi.URLParam)

	r.Group(func(r chi.Router) {
		r.Use(account.Middleware(m.accounts, m.cfg.UserHeader, m.logger))

		r.Post("/api/level", wrap(m, m.createLevel, binder.JSON()))
		r.Put("/api/level/{levelId}", wrap(m, m.updateLevel, path, binder.JSON()))
		r.Get("/edit/{levelId}", wrap(m, m.editLevel, path))
		r.Post("/api/publish/{levelId}", wrap(m, m.publishLevel, path))
		r.Post("/api/schedule-publish/{levelId}", wrap(m, m.schedulePublish, path, binder.JSON()))
		r.Delete("/api/schedule-publish/{levelId}", wrap(m, m.cancelSchedule, path))
	})

	r.Group(func(r chi.Router) {
		r.Use(m.requireInternalToken)

		r.Post("/api/internal/process-queue", wrap(m, m.processQueue))
		r.Post("/api/internal/recalc-play-attempts", wrap(m, m.recalcPlayAttempts))
	})

	return r
}

func wrap[R any](m *Module, h handler.HandlerFunc[handler.Context, R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](handler.NewErrorHandler[handler.Context](m.logger)),
	)
}

// requireInternalToken checks "Authorization: Bearer <token>" in constant time.
func (m *Module) requireInternalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || m.cfg.InternalToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(m.cfg.InternalToken)) != 1 {
			m.logger.WarnContext(r.Context(), "internal endpoint rejected", slog.String("path", r.URL.Path))
			_ = handler.JSONError(handler.NewHTTPError(http.StatusUnauthorized, errInvalidToken)).Render(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
