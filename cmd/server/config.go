package main

import (
	"time"

	"github.com/dmitrymomot/levelqueue/modules/levels"
	"github.com/dmitrymomot/levelqueue/pkg/email"
	"github.com/dmitrymomot/levelqueue/pkg/file"
	"github.com/dmitrymomot/levelqueue/pkg/httpserver"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/mongo"
	"github.com/dmitrymomot/levelqueue/pkg/opensearch"
	"github.com/dmitrymomot/levelqueue/pkg/pg"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/redis"
	"github.com/dmitrymomot/levelqueue/svc/level"
	"github.com/dmitrymomot/levelqueue/svc/notify"
)

const (
	driverMongo    = "mongo"
	driverPostgres = "postgres"
)

type appConfig struct {
	StoreDriver      string        `env:"STORE_DRIVER" envDefault:"mongo"`
	QueueCollection  string        `env:"QUEUE_COLLECTION" envDefault:"queueMessages"`
	RecalcAt         string        `env:"RECALC_PLAY_ATTEMPTS_AT" envDefault:"03:00"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`

	Log        logger.Config
	HTTP       httpserver.Config
	Mongo      mongo.Config
	Postgres   pg.Config
	Redis      redis.Config
	OpenSearch opensearch.Config
	Files      file.Config
	Email      email.Config
	Queue      queue.Config
	Level      level.Config
	Notify     notify.Config
	API        levels.Config
}
