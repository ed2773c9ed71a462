package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/detailbook/libs/config"
	"github.com/md-rashed-zaman/detailbook/libs/db"
	"github.com/md-rashed-zaman/detailbook/libs/httpx"
	"github.com/md-rashed-zaman/detailbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/detailbook/libs/otel"
	"github.com/md-rashed-zaman/detailbook/libs/runtime"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/events"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/handlers"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/metrics"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/quote"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/sessions"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := metrics.NewAvailabilityMetrics(nil)
	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var pricing quote.PricingLookup = storage.NewPricingRepository(pool)
	var priceCache *storage.PriceCache
	var rateLimitMW httpx.Middleware
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		priceCache = storage.NewPriceCache(rdb, pricing, cfg.PriceCacheTTL, logger)
		pricing = priceCache
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "detailbook:rl")
		rateLimitMW = rl.Middleware(logger, cfg.RateLimitFailOpen)
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
		logger.Info("price cache and rate limiting enabled (redis)", "redis_addr", cfg.RedisAddr, "ttl", cfg.PriceCacheTTL.String())
	} else {
		rl := httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		go rl.RunJanitor(ctx)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	publisher := events.NewPublisher(logger, events.PublisherConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Observe: m.ObserveEvent,
	})
	go publisher.Run(ctx)
	if publisher.Enabled() && priceCache != nil {
		pricingConsumer := events.NewPricingConsumer(logger, priceCache, events.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.KafkaPricingTopic,
		})
		go pricingConsumer.Run(ctx)
	}
	if publisher.Enabled() {
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:     "kafka",
			Check:    kafkax.ReadyCheck(kafkax.SplitBrokers(cfg.KafkaBrokers)),
			Optional: true,
		})
	}

	engine, err := availability.NewEngine(cfg.Hours, cfg.IntervalMinutes, cfg.Location)
	if err != nil {
		logger.Error("availability engine config invalid", "err", err)
		os.Exit(1)
	}
	resolver := quote.NewResolver(pricing)
	bookings := storage.NewBookingRepository(pool)
	factory := func(render selection.Renderer) (*selection.Scheduler, error) {
		return selection.New(selection.Config{
			Engine:        engine,
			Quotes:        resolver,
			Bookings:      bookings,
			Render:        render,
			FailureMode:   cfg.FailureMode,
			LookupTimeout: cfg.LookupTimeout,
			Logger:        logger,
			Observer:      m,
		})
	}

	registry := sessions.NewRegistry(factory,
		sessions.WithRenderHook(func(id string, r sessions.Rendered) {
			publisher.Publish(context.Background(), events.NewAvailabilityRendered(id, r.Slots, r.Meta, r.RenderedAt))
		}),
		sessions.WithSizeObserver(m.SetActiveSessions),
		sessions.WithMaxSessions(cfg.MaxSessions),
	)
	sweeper := sessions.NewSweeper(registry, logger, sessions.SweeperConfig{IdleTTL: cfg.SessionIdleTTL})
	go sweeper.Run(ctx)

	sessionHandler := handlers.NewSessionHandler(registry, logger)
	publicHandler := handlers.NewPublicHandler(factory, logger)

	mux := runtime.NewBaseMux(2*time.Second, readyChecks...)
	mux.Handle("/metrics", promhttp.Handler())
	routes := map[string]http.HandlerFunc{
		"/api/v1/sessions":            sessionHandler.Sessions,
		"/api/v1/sessions/vehicle":    sessionHandler.SetVehicle,
		"/api/v1/sessions/service":    sessionHandler.SetService,
		"/api/v1/sessions/date":       sessionHandler.SetDate,
		"/api/v1/sessions/state":      sessionHandler.State,
		"/api/v1/public/availability": publicHandler.Availability,
	}
	m.TrackRoutes("/healthz", "/readyz", "/metrics")
	for path, h := range routes {
		mux.HandleFunc(path, h)
		m.TrackRoutes(path)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.WidgetCORSPolicy(cfg.CORSOrigins)),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, m.ObserveRequest),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting",
			"addr", srv.Addr,
			"business_hours_start", cfg.Hours.StartHour,
			"business_hours_end", cfg.Hours.EndHour,
			"slot_interval_minutes", cfg.IntervalMinutes,
			"failure_mode", cfg.FailureMode.String(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
