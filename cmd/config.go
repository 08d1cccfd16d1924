package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"masterserver/adapters/myredis"
	"masterserver/domain"

	"gopkg.in/yaml.v3"
)

// Env variable names.
const (
	envDiscoveryPort         = "SERVICE_PORT_DISCOVERY"
	envRegistrationPort      = "SERVICE_PORT_REGISTRATION"
	envHealthPort            = "SERVICE_PORT_GRPC_HEALTH"
	envListenHost            = "LISTEN_HOST"
	envTTL                   = "REGISTRY_TTL"
	envSweepInterval         = "SWEEP_INTERVAL"
	envIdleTimeout           = "IDLE_TIMEOUT"
	envTombstoneRetention    = "TOMBSTONE_RETENTION"
	envShards                = "REGISTRY_SHARDS"
	envPageSizeDefault       = "PAGE_SIZE_DEFAULT"
	envPageSizeMax           = "PAGE_SIZE_MAX"
	envRateLimitRPS          = "RATE_LIMIT_RPS"
	envRateLimitBurst        = "RATE_LIMIT_BURST"
	envMaxProtocolViolations = "MAX_PROTOCOL_VIOLATIONS"
	envRedisAddr             = "REDIS_ADDR"
	envRedisEventsChannel    = "REDIS_EVENTS_CHANNEL"
	envConfigPath            = "CONFIG_PATH"
)

// Config holds the master server configuration loaded by LoadConfig.
type Config struct {
	ListenHost       string
	DiscoveryPort    int
	RegistrationPort int
	// HealthPort is the gRPC health port; 0 disables the health server.
	HealthPort int

	TTL                time.Duration
	SweepInterval      time.Duration
	IdleTimeout        time.Duration
	TombstoneRetention time.Duration
	Shards             int

	PageSizeDefault int
	PageSizeMax     int

	RateLimitRPS          float64
	RateLimitBurst        int
	MaxProtocolViolations int

	Redis  myredis.RedisConfig
	Schema domain.Schema
}

// yamlConfig is the root struct of the optional YAML file at CONFIG_PATH.
type yamlConfig struct {
	MetadataSchema map[string]string `yaml:"metadata_schema"`
}

// loadYAMLConfig reads the YAML file at path.
func loadYAMLConfig(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out yamlConfig
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadConfig builds the configuration from environment variables and, when CONFIG_PATH is set, the YAML file it
// names. Every variable is optional; errors name the offending variable.
func LoadConfig() (*Config, error) {
	config := &Config{
		DiscoveryPort:         8080,
		RegistrationPort:      8081,
		HealthPort:            8082,
		TTL:                   30 * time.Second,
		IdleTimeout:           60 * time.Second,
		Shards:                32,
		PageSizeDefault:       50,
		PageSizeMax:           500,
		RateLimitRPS:          20,
		RateLimitBurst:        40,
		MaxProtocolViolations: 5,
		Redis: myredis.RedisConfig{
			EventsChannel: "masterserver:events",
		},
		Schema: domain.DefaultSchema(),
	}
	config.ListenHost = strings.TrimSpace(os.Getenv(envListenHost))

	var err error
	if config.DiscoveryPort, err = envPort(envDiscoveryPort, config.DiscoveryPort, false); err != nil {
		return nil, err
	}
	if config.RegistrationPort, err = envPort(envRegistrationPort, config.RegistrationPort, false); err != nil {
		return nil, err
	}
	if config.HealthPort, err = envPort(envHealthPort, config.HealthPort, true); err != nil {
		return nil, err
	}
	if config.DiscoveryPort == config.RegistrationPort {
		return nil, fmt.Errorf("%s and %s must differ, both are %d", envDiscoveryPort, envRegistrationPort, config.DiscoveryPort)
	}
	if config.HealthPort != 0 && (config.HealthPort == config.DiscoveryPort || config.HealthPort == config.RegistrationPort) {
		return nil, fmt.Errorf("%s must differ from the listener ports, got %d", envHealthPort, config.HealthPort)
	}

	if config.TTL, err = envDuration(envTTL, config.TTL); err != nil {
		return nil, err
	}
	if config.TTL <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", envTTL, config.TTL)
	}
	if config.SweepInterval, err = envDuration(envSweepInterval, config.TTL/4); err != nil {
		return nil, err
	}
	if config.SweepInterval <= 0 || config.SweepInterval >= config.TTL {
		return nil, fmt.Errorf("%s must be positive and shorter than %s (%s), got %s", envSweepInterval, envTTL, config.TTL, config.SweepInterval)
	}
	if config.IdleTimeout, err = envDuration(envIdleTimeout, config.IdleTimeout); err != nil {
		return nil, err
	}
	if config.IdleTimeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", envIdleTimeout, config.IdleTimeout)
	}
	if config.TombstoneRetention, err = envDuration(envTombstoneRetention, 10*config.TTL); err != nil {
		return nil, err
	}
	if config.TombstoneRetention < config.TTL {
		return nil, fmt.Errorf("%s must be at least %s (%s), got %s", envTombstoneRetention, envTTL, config.TTL, config.TombstoneRetention)
	}

	if config.Shards, err = envInt(envShards, config.Shards); err != nil {
		return nil, err
	}
	if config.Shards < 1 || config.Shards > 4096 {
		return nil, fmt.Errorf("%s must be 1-4096, got %d", envShards, config.Shards)
	}
	if config.PageSizeDefault, err = envInt(envPageSizeDefault, config.PageSizeDefault); err != nil {
		return nil, err
	}
	if config.PageSizeMax, err = envInt(envPageSizeMax, config.PageSizeMax); err != nil {
		return nil, err
	}
	if config.PageSizeDefault < 1 || config.PageSizeMax < config.PageSizeDefault {
		return nil, fmt.Errorf("%s must be positive and at most %s, got %d and %d",
			envPageSizeDefault, envPageSizeMax, config.PageSizeDefault, config.PageSizeMax)
	}

	if v := os.Getenv(envRateLimitRPS); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envRateLimitRPS, err)
		}
		config.RateLimitRPS = rps
	}
	if config.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %v", envRateLimitRPS, config.RateLimitRPS)
	}
	if config.RateLimitBurst, err = envInt(envRateLimitBurst, config.RateLimitBurst); err != nil {
		return nil, err
	}
	if config.RateLimitBurst < 1 {
		return nil, fmt.Errorf("%s must be positive, got %d", envRateLimitBurst, config.RateLimitBurst)
	}
	if config.MaxProtocolViolations, err = envInt(envMaxProtocolViolations, config.MaxProtocolViolations); err != nil {
		return nil, err
	}
	if config.MaxProtocolViolations < 1 {
		return nil, fmt.Errorf("%s must be positive, got %d", envMaxProtocolViolations, config.MaxProtocolViolations)
	}

	config.Redis.Addr = strings.TrimSpace(os.Getenv(envRedisAddr))
	if v := strings.TrimSpace(os.Getenv(envRedisEventsChannel)); v != "" {
		config.Redis.EventsChannel = v
	}

	if configPath := strings.TrimSpace(os.Getenv(envConfigPath)); configPath != "" {
		if !filepath.IsAbs(configPath) {
			abs, absErr := filepath.Abs(configPath)
			if absErr != nil {
				return nil, absErr
			}
			configPath = abs
		}
		raw, err := loadYAMLConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		if len(raw.MetadataSchema) > 0 {
			schema := make(domain.Schema, len(raw.MetadataSchema))
			for k, v := range raw.MetadataSchema {
				schema[strings.TrimSpace(k)] = domain.ValueKind(strings.ToLower(strings.TrimSpace(v)))
			}
			if err := schema.Validate(); err != nil {
				return nil, fmt.Errorf("config %s: %w", configPath, err)
			}
			config.Schema = schema
		}
	}

	return config, nil
}

func envPort(name string, def int, allowZero bool) (int, error) {
	port, err := envInt(name, def)
	if err != nil {
		return 0, err
	}
	if port == 0 && allowZero {
		return 0, nil
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be 1-65535, got %d", name, port)
	}
	return port, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
