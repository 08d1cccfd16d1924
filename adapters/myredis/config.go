package myredis

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisConfig holds the optional Redis connection used to mirror registry events.
type RedisConfig struct {
	// Addr is a redis:// URL. Empty disables the mirror.
	Addr string
	// EventsChannel is the pub/sub channel events are published to.
	EventsChannel string
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// NewRedisUniversalClient creates and configures instance of redis universal client.
func NewRedisUniversalClient(redisAddr string, options ...ConfigOption) (redis.UniversalClient, error) {
	redisOptions, err := redis.ParseURL(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("cant parse redis url: %w", err)
	}
	for _, opt := range options {
		opt(redisOptions)
	}
	return redis.NewUniversalClient(universalOptions(redisOptions)), nil
}

// ConfigOption configures the client.
type ConfigOption func(*redis.Options)

func universalOptions(options *redis.Options) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:              []string{options.Addr},
		DB:                 options.DB,
		Username:           options.Username,
		Password:           options.Password,
		TLSConfig:          options.TLSConfig,
		WriteTimeout:       options.WriteTimeout,
		ReadTimeout:        options.ReadTimeout,
		DialTimeout:        options.DialTimeout,
		MaxRetries:         options.MaxRetries,
		PoolSize:           options.PoolSize,
		PoolTimeout:        options.PoolTimeout,
		MinIdleConns:       options.MinIdleConns,
		IdleTimeout:        options.IdleTimeout,
		IdleCheckFrequency: options.IdleCheckFrequency,
	}
}
