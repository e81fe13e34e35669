package level

import (
	"log/slog"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/svc/account"
)

// Option configures a Publisher.
type Option func(*options)

type options struct {
	clock        clock.Clock
	logger       *slog.Logger
	validator    PublishValidator
	entitlements account.Entitlements
	cfg          Config
}

func defaultOptions() *options {
	return &options{
		clock:        clock.Real(),
		logger:       slog.Default(),
		validator:    StructuralValidator{},
		entitlements: account.RoleEntitlements{},
		cfg:          DefaultConfig(),
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithValidator replaces the StructuralValidator.
func WithValidator(v PublishValidator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

func WithEntitlements(e account.Entitlements) Option {
	return func(o *options) {
		if e != nil {
			o.entitlements = e
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}
