package kv

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Option is a functional option for configuring a kv store.
type Option func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	gormDB      *gorm.DB
	sqlitePath  string
}

// WithRedisClient sets the redis client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the expiry applied to redis keys.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithGormDB sets an already-open gorm handle for the sqlite driver.
// Takes precedence over WithSQLitePath.
func WithGormDB(db *gorm.DB) Option {
	return func(c *storeConfig) {
		c.gormDB = db
	}
}

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}
