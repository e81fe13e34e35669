package queue

import "time"

// Config holds the configuration for the message queue
type Config struct {
	MaxAttempts     int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBase     time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"30s"`
	BackoffMax      time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"10m"`
	BatchSize       int           `env:"QUEUE_BATCH_SIZE" envDefault:"50"`
	Concurrency     int           `env:"QUEUE_CONCURRENCY" envDefault:"1"`
	HandlerTimeout  time.Duration `env:"QUEUE_HANDLER_TIMEOUT" envDefault:"2m"`
	LockTimeout     time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"10m"`
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	EmbeddedWorker  bool          `env:"QUEUE_EMBEDDED_WORKER" envDefault:"true"`
	CycleLockTTL    time.Duration `env:"QUEUE_CYCLE_LOCK_TTL" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}
