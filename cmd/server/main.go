package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/adapters/cache"
	"hos-dispatch-service/internal/adapters/cooldown"
	"hos-dispatch-service/internal/adapters/distance"
	"hos-dispatch-service/internal/adapters/events"
	"hos-dispatch-service/internal/adapters/repositories"
	"hos-dispatch-service/internal/adapters/telemetry"
	"hos-dispatch-service/internal/api"
	"hos-dispatch-service/internal/api/handlers"
	"hos-dispatch-service/internal/config"
	"hos-dispatch-service/internal/monitor"
	"hos-dispatch-service/internal/platform/db"
	"hos-dispatch-service/internal/platform/httpx"
	"hos-dispatch-service/internal/platform/logging"
	"hos-dispatch-service/internal/ports"
	"hos-dispatch-service/internal/services"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root. It picks concrete adapters from the
// environment, starts the monitor loop and re-planner, and serves the HTTP API.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New("hos-dispatch", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	policy := cfg.Policy
	planner := policy.Planner

	// Postgres backs plan versions and the routing caches when configured.
	var (
		sqlDB *sql.DB
		plans ports.PlanStore = repositories.NewMemoryPlanStore()
	)
	if cfg.DatabaseURL != "" {
		var err error
		if sqlDB, err = db.Open(ctx, cfg.DatabaseURL, db.DefaultOptions()); err != nil {
			return err
		}
		defer sqlDB.Close()
		if err := repositories.InitSchema(ctx, sqlDB); err != nil {
			return err
		}
		plans = repositories.NewPostgresPlanStore(sqlDB)
		logger.Info("plan store ready", "backend", "postgres")
	}

	provider, err := newDistanceProvider(cfg, sqlDB, planner, logger)
	if err != nil {
		return err
	}

	var cooldowns ports.CooldownStore = cooldown.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		cooldowns = cooldown.NewRedisStore(rdb, "hos:cooldown:")
		logger.Info("cooldown store ready", "backend", "redis", "addr", cfg.RedisAddr)
	}

	history := events.NewEventLog(200)
	publisher := events.Multi{history, events.NewLogPublisher(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return err
		}
		publisher = append(publisher, kp)
		logger.Info("trigger events stream to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publishers", "err", err)
		}
	}()

	// Telemetry is pulled from an upstream service or pushed to this one.
	var (
		feeds ports.TelemetryProvider
		sink  *telemetry.MemoryStore
	)
	if cfg.TelemetryURL != "" {
		if feeds, err = telemetry.NewHTTPProvider(cfg.TelemetryURL, httpx.New(cfg.Loop.FeedTimeout, cfg.TelemetryRPS)); err != nil {
			return err
		}
	} else {
		sink = telemetry.NewMemoryStore(cfg.TelemetryStaleAfter)
		feeds = sink
	}

	catalog, err := monitor.DefaultCatalog(policy.Triggers)
	if err != nil {
		return err
	}
	advisor := services.NewRestAdvisor(planner.Thresholds, planner.Rules, planner.AvgSpeedMph, planner.LaborCostPerHour)
	mon := monitor.NewMonitor(catalog, cooldowns, planner.Thresholds, advisor, logger)

	registry := repositories.NewAssignmentRegistry()
	queue := monitor.NewReplanQueue()
	loop := monitor.NewLoop(cfg.Loop, registry, feeds, mon, publisher, queue, logger)
	replanner := &monitor.Replanner{
		Queue:     queue,
		Source:    registry,
		Telemetry: feeds,
		Distance:  provider,
		Store:     plans,
		Recorder:  registry,
		Config:    planner,
		Timeout:   30 * time.Second,
		Log:       logger.With(slog.String("component", "replanner")),
		Now:       func() time.Time { return time.Now().UTC() },
	}

	monitorHandler := &handlers.MonitorHandler{
		Monitor:     mon,
		Assignments: registry,
		Telemetry:   feeds,
		FeedTimeout: cfg.Loop.FeedTimeout,
		Publisher:   publisher,
		Queue:       queue,
		History:     history,
		Canceller:   loop,
		Logger:      logger,
	}
	if sink != nil {
		monitorHandler.Sink = sink
	}

	health := &handlers.HealthHandler{Logger: logger}
	if sqlDB != nil {
		health.Ping = sqlDB.PingContext
	}
	router := api.NewRouter(api.Deps{
		Health: health,
		Plans: &handlers.PlanHandler{
			Provider: provider,
			Store:    plans,
			Config:   planner,
			Policy:   policy.RestPolicy,
			Recorder: registry,
			Logger:   logger,
		},
		HOS:     &handlers.HOSHandler{Config: planner, Policy: policy.RestPolicy},
		Monitor: monitorHandler,
		Logger:  logger,
	})

	// Timeouts are tuned for cold-cache route planning (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 3)
	if cfg.MonitorEnabled {
		go func() { errc <- loop.Run(ctx) }()
		go func() { errc <- replanner.Run(ctx) }()
	} else {
		logger.Info("background monitor disabled; ticks run only through POST /monitor/tick")
	}
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	loop.Wait()
	return nil
}

// newDistanceProvider uses OpenRouteService when a key is set, with the Postgres
// caches when a database is available, and great-circle estimates otherwise.
func newDistanceProvider(cfg config.Config, sqlDB *sql.DB, planner services.PlannerConfig, logger *slog.Logger) (ports.DistanceProvider, error) {
	if cfg.ORSAPIKey == "" {
		logger.Warn("ORS_API_KEY not set; estimating legs from great-circle distance (coordinates only)")
		return distance.NewHaversineProvider(1.2, planner.AvgSpeedMph), nil
	}
	var opts []distance.ORSOption
	if sqlDB != nil {
		opts = append(opts, distance.WithCaches(cache.NewDistanceCache(sqlDB, 7*24*time.Hour), cache.NewGeocodeCache(sqlDB)))
	}
	return distance.NewORSDistanceProvider(cfg.ORSAPIKey, logger, opts...)
}
