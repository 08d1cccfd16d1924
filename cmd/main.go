package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"masterserver/adapters/myredis"
	"masterserver/api"
	"masterserver/domain"
	"masterserver/handlers"
	"masterserver/interfaces"
	"masterserver/registry"
	"masterserver/service"
	"masterserver/session"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout   = 10 * time.Second
	watchEventBuffer  = 64
	redisEventBuffer  = 1024
	readHeaderTimeout = 10 * time.Second
)

func main() {
	// Initialize logger
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.WithPrefix(logger, "ts", log.DefaultTimestampUTC)
	logger = log.WithPrefix(logger, "caller", log.DefaultCaller)

	level.Info(logger).Log("msg", "Starting masterserver")

	// Load configuration
	config, err := LoadConfig()
	if err != nil {
		level.Error(logger).Log("msg", "Failed to load configuration", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log(
		"msg", "Configuration loaded",
		"service_port_discovery", config.DiscoveryPort,
		"service_port_registration", config.RegistrationPort,
		"service_port_grpc_health", config.HealthPort,
		"ttl", config.TTL,
		"sweep_interval", config.SweepInterval,
		"idle_timeout", config.IdleTimeout,
		"shards", config.Shards,
		"metadata_fields", fmt.Sprint(config.Schema.Fields()),
		"redis_addr", config.Redis.Addr,
	)

	clock := service.NewTimeProvider(time.Now)
	broadcaster := service.NewBroadcaster(watchEventBuffer, logger)

	// Registry events go to discovery watchers and, when configured, to Redis
	var sink interfaces.EventSink = broadcaster
	var publisher *myredis.EventPublisher
	if config.Redis.Enabled() {
		redisClient, err := myredis.NewRedisUniversalClient(config.Redis.Addr)
		if err != nil {
			level.Error(logger).Log("msg", "Failed to create Redis client", "err", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			level.Error(logger).Log("msg", "Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "Connected to Redis", "channel", config.Redis.EventsChannel)

		publisher = myredis.NewEventPublisher(redisClient, config.Redis.EventsChannel, redisEventBuffer, logger)
		sink = service.MultiSink{broadcaster, publisher}
	}

	store := registry.NewStore(registry.Options{
		TTL:                config.TTL,
		TombstoneRetention: config.TombstoneRetention,
		Shards:             config.Shards,
	}, clock, sink, logger)
	sweeper := registry.NewSweeper(store, config.SweepInterval, logger)
	sessions := session.NewManager(session.Options{
		RateLimit:     rate.Limit(config.RateLimitRPS),
		Burst:         config.RateLimitBurst,
		MaxViolations: config.MaxProtocolViolations,
	}, clock, logger)

	// Create registration server (port 8081)
	registrationServer := handlers.NewRegistrationServer(store, sessions, clock, handlers.RegistrationOptions{
		TTL:         config.TTL,
		IdleTimeout: config.IdleTimeout,
		Schema:      config.Schema,
	}, logger)
	registrationEcho, err := newEcho(api.RegistrationOpenAPI, config, logger)
	if err != nil {
		level.Error(logger).Log("msg", "Failed to create registration HTTP server", "err", err)
		os.Exit(1)
	}
	handlers.RegisterRegistrationHandlers(registrationEcho, registrationServer)

	// Create discovery server (port 8080); it only gets the read-only directory
	var directory interfaces.Directory = store
	discoveryServer := handlers.NewDiscoveryServer(directory, broadcaster, sessions, clock, handlers.DiscoveryOptions{
		Paging:      handlers.Paging{Default: config.PageSizeDefault, Max: config.PageSizeMax},
		IdleTimeout: config.IdleTimeout,
		Schema:      config.Schema,
	}, logger)
	discoveryEcho, err := newEcho(api.DiscoveryOpenAPI, config, logger, middleware.CORS())
	if err != nil {
		level.Error(logger).Log("msg", "Failed to create discovery HTTP server", "err", err)
		os.Exit(1)
	}
	handlers.RegisterDiscoveryHandlers(discoveryEcho, discoveryServer)

	// Bind every listener before reporting healthy
	registrationListener, err := net.Listen("tcp", listenAddr(config.ListenHost, config.RegistrationPort))
	if err != nil {
		level.Error(logger).Log("msg", "Failed to listen", "listener", "registration", "err", err)
		os.Exit(1)
	}
	registrationEcho.Listener = registrationListener
	discoveryListener, err := net.Listen("tcp", listenAddr(config.ListenHost, config.DiscoveryPort))
	if err != nil {
		level.Error(logger).Log("msg", "Failed to listen", "listener", "discovery", "err", err)
		os.Exit(1)
	}
	discoveryEcho.Listener = discoveryListener

	var healthServer *handlers.HealthServer
	if config.HealthPort != 0 {
		healthListener, err := net.Listen("tcp", listenAddr(config.ListenHost, config.HealthPort))
		if err != nil {
			level.Error(logger).Log("msg", "Failed to listen", "listener", "health", "err", err)
			os.Exit(1)
		}
		healthServer = handlers.NewHealthServer(logger)
		go func() {
			if err := healthServer.Serve(healthListener); err != nil {
				level.Error(logger).Log("msg", "gRPC health server error", "err", err)
			}
		}()
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(sweepCtx)
	}()

	// Start servers; a listener that dies takes the process down gracefully
	serverErr := make(chan error, 2)
	go serve(registrationEcho, "registration", registrationListener, serverErr, logger)
	go serve(discoveryEcho, "discovery", discoveryListener, serverErr, logger)
	if healthServer != nil {
		healthServer.SetServing(handlers.HealthServiceRegistration, true)
		healthServer.SetServing(handlers.HealthServiceDiscovery, true)
		healthServer.SetServing(handlers.HealthServiceOverall, true)
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		level.Info(logger).Log("msg", "Shutting down server...", "signal", sig)
	case err := <-serverErr:
		level.Error(logger).Log("msg", "Shutting down after server failure", "err", err)
		exitCode = 1
	}

	if healthServer != nil {
		healthServer.SetServing(handlers.HealthServiceOverall, false)
		healthServer.SetServing(handlers.HealthServiceRegistration, false)
		healthServer.SetServing(handlers.HealthServiceDiscovery, false)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)

	level.Info(logger).Log(
		"msg", "Closing sessions",
		"registration_sessions", sessions.Count(domain.RoleRegistration),
		"discovery_sessions", sessions.Count(domain.RoleDiscovery),
		"registered_servers", store.Len(),
	)
	registrationServer.Shutdown()
	discoveryServer.Shutdown()
	if err := registrationEcho.Shutdown(shutdownCtx); err != nil {
		level.Error(logger).Log("msg", "Error during registration server shutdown", "err", err)
	}
	if err := discoveryEcho.Shutdown(shutdownCtx); err != nil {
		level.Error(logger).Log("msg", "Error during discovery server shutdown", "err", err)
	}

	stopSweeper()
	<-sweeperDone

	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "Error draining Redis publisher", "err", err, "dropped", publisher.Dropped())
		}
	}
	if healthServer != nil {
		healthServer.Stop()
	}

	shutdownCancel()

	level.Info(logger).Log("msg", "Server stopped")
	os.Exit(exitCode)
}

// newEcho creates an echo instance with the shared middleware stack: panic recovery, per-IP rate limiting and
// validation against the listener's OpenAPI document. Extra middleware runs after recovery and ahead of the
// rate limiter, so CORS preflights are answered without spending tokens.
func newEcho(spec []byte, config *Config, logger log.Logger, extra ...echo.MiddlewareFunc) (*echo.Echo, error) {
	validator, err := handlers.NewOpenAPIValidator(spec)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Identities derive from the caller's address, so forwarding headers are never trusted.
	e.IPExtractor = echo.ExtractIPDirect()
	e.Server.ReadHeaderTimeout = readHeaderTimeout
	e.Server.IdleTimeout = config.IdleTimeout
	service.RegisterErrorHandler(e, logger)
	e.Use(middleware.Recover())
	e.Use(extra...)
	e.Use(handlers.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst))
	e.Use(validator)
	return e, nil
}

func serve(e *echo.Echo, name string, lis net.Listener, serverErr chan<- error, logger log.Logger) {
	level.Info(logger).Log("msg", "Starting HTTP server", "listener", name, "addr", lis.Addr().String())
	if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		level.Error(logger).Log("msg", "HTTP server error", "listener", name, "err", err)
		serverErr <- fmt.Errorf("%s listener: %w", name, err)
	}
}

func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
