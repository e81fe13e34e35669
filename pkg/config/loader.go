package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// LoadEnv reads the given dotenv files into the process environment.
// Variables that are already set win over file values. Missing files are
// an error here, unlike the implicit ".env" read done by Load.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Option tunes how Load parses the environment.
type Option func(*env.Options)

// WithPrefix only considers variables starting with prefix.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment parses from the given map instead of os.Environ.
// Tests use it to avoid touching process state.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

// Load fills v from environment variables according to its env struct tags.
// The first call also reads a ".env" file from the working directory when
// one exists.
//
//	type Config struct {
//		MongoURL string `env:"MONGODB_URL,required"`
//		Driver   string `env:"STORE_DRIVER" envDefault:"mongo"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	defaultEnvLoaded.Do(func() {
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load()
		}
	})

	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}

	if err := env.ParseWithOptions(v, o); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
