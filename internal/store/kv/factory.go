package kv

import (
	"context"
	"sync"
)

// Driver selects a kv backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
)

// New creates a Store for the given driver.
// The redis driver requires WithRedisClient; the sqlite driver requires
// either WithGormDB or WithSQLitePath.
func New(driver Driver, opts ...Option) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch driver {
	case DriverMemory:
		return &memoryStore{values: make(map[string]string)}, nil

	case DriverSQLite:
		return newSQLiteStore(config)

	case DriverRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client: config.redisClient,
			ttl:    config.redisTTL,
		}, nil

	default:
		return nil, ErrInvalidDriver
	}
}

// memoryStore implements Store with a mutex-guarded map.
type memoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = nil
	return nil
}
