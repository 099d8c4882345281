package main

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/store"
	"github.com/redis/go-redis/v9"
)

type commandContext struct {
	once   sync.Once
	config *config.Config
	rdb    *redis.Client
	pg     *logging.PGHandler
	events *events.Publisher
	job    *jobs.GrantJob
	err    error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// grantJob connects the database and Redis on first use.
func (c *commandContext) grantJob() (*jobs.GrantJob, *config.Config, error) {
	c.once.Do(func() {
		cfg := config.Load()
		if cfg.DBPassword == "" {
			c.err = errors.New("DB_PASSWORD environment variable is required")
			return
		}
		if err := database.Connect(cfg); err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.pg = logging.Install(database.DB)
		c.rdb = cache.NewRedisClient(cfg)

		c.events = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		grants := services.NewGrantService(
			store.NewProfileStore(database.DB),
			store.NewCreditStore(database.DB, c.rdb),
			c.events,
		)
		c.job = jobs.NewGrantJob(grants, c.rdb)
	})
	return c.job, c.config, c.err
}

// close releases connections; the PG log sink is stopped after everything
// that may still log and before the database goes away.
func (c *commandContext) close() {
	if c.events != nil {
		c.events.Close()
	}
	if c.pg != nil {
		c.pg.Stop()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			slog.Warn("redis close error", "error", err)
		}
	}
	database.Close()
}
