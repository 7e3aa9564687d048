package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"geocode-gateway/geocode"
	"geocode-gateway/middleware/ratelimit"
	"geocode-gateway/middleware/ratelimit/domain"
	"geocode-gateway/middleware/ratelimit/infra"
	"geocode-gateway/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.deployed)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store domain.LimiterStore
	switch cfg.rateStrategy {
	case "bucket":
		s := infra.NewBucketStore(cfg.rateRPS, cfg.rateBurst, infra.WithCleanupEvery(cfg.sweepEvery))
		s.StartJanitor(ctx)
		store = s
	default: // "window"
		s := infra.NewWindowStore(cfg.rateWindow, cfg.rateMax, infra.WithSweepEvery(cfg.sweepEvery))
		s.StartJanitor(ctx)
		store = s
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	// gate aplicado só aos caminhos /api/* (health e metrics ficam de fora):
	// rate limit por fora, limite de concorrência por dentro.
	limit := func(next http.Handler) http.Handler {
		h := next
		h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		})(h)
		if cfg.rateEnabled {
			h = ratelimit.Middleware(ratelimit.Options{
				Store:               store,
				Stats:               statsStore,
				KeyHeader:           cfg.rateKeyHeader,
				TrustXForwardedFor:  cfg.trustXFF,
				RejectStatus:        http.StatusTooManyRequests,
				AddRateLimitHeaders: cfg.addHeaders,
				OnReject:            server.RateLimited,
				OnStatsError: func(err error) {
					logger.Debug("rate limit stats record failed", zap.Error(err))
				},
			})(h)
		}
		return h
	}

	geo := geocode.NewClient(geocode.WithBaseURL(cfg.upstreamURL))

	handler := server.New(server.Config{
		AllowedOrigins: cfg.allowedOrigins,
		DefaultOrigin:  cfg.defaultOrigin,
		Deployed:       cfg.deployed,
		StaticDir:      cfg.staticDir,
	}, geo, limit, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("geoproxy listening",
		zap.String("addr", srv.Addr),
		zap.Bool("deployed", cfg.deployed),
		zap.String("upstream", cfg.upstreamURL),
	)
	logger.Info("rate limit",
		zap.Bool("enabled", cfg.rateEnabled),
		zap.String("strategy", cfg.rateStrategy),
		zap.Duration("window", cfg.rateWindow),
		zap.Int("max", cfg.rateMax),
		zap.Bool("trust_xff", cfg.trustXFF),
	)
	logger.Info("rate stats",
		zap.Bool("enabled", cfg.rateStatsEnabled),
		zap.String("redis_addr", cfg.rateStatsRedisAddr),
		zap.String("bucket", cfg.rateStatsBucket),
	)
	logger.Info("concurrency",
		zap.Int("max", cfg.concurrencyMax),
		zap.Duration("acquire_timeout", cfg.concurrencyTimeout),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(deployed bool) (*zap.Logger, error) {
	if deployed {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

type config struct {
	port           string
	allowedOrigins []string
	defaultOrigin  string
	deployed       bool
	staticDir      string
	upstreamURL    string

	rateEnabled  bool
	rateStrategy string
	rateWindow   time.Duration
	rateMax      int
	rateRPS      float64
	rateBurst    int
	sweepEvery   time.Duration

	rateKeyHeader      string
	trustXFF           bool
	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.port = getenvDefault("PORT", "8090")

	origins := getenvDefault("ALLOWED_ORIGINS", "http://localhost:8090,http://127.0.0.1:8090")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.allowedOrigins = append(cfg.allowedOrigins, o)
		}
	}
	if len(cfg.allowedOrigins) == 0 {
		return config{}, errors.New("ALLOWED_ORIGINS must contain at least one origin")
	}
	cfg.defaultOrigin = getenvDefault("CORS_DEFAULT_ORIGIN", cfg.allowedOrigins[0])

	cfg.deployed = getenvBoolDefault("DEPLOYED", false)
	cfg.staticDir = getenvDefault("STATIC_DIR", ".")
	cfg.upstreamURL = getenvDefault("UPSTREAM_URL", "https://geocoding.geo.census.gov/geocoder/geographies")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateStrategy = strings.ToLower(getenvDefault("RATE_STRATEGY", "window"))
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", 60*time.Second)
	cfg.rateMax = getenvIntDefault("RATE_MAX", 30)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 0.5)
	cfg.rateBurst = getenvIntDefault("RATE_BURST", 30)
	cfg.sweepEvery = getenvDurationDefault("SWEEP_EVERY", 2*time.Minute)

	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "geoproxy:ratelimit")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if cfg.rateStrategy != "window" && cfg.rateStrategy != "bucket" {
		return config{}, errors.New("RATE_STRATEGY must be window or bucket")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.rateMax <= 0 {
		return config{}, errors.New("RATE_MAX must be > 0")
	}
	if cfg.rateStrategy == "bucket" {
		if cfg.rateRPS <= 0 {
			return config{}, errors.New("RATE_RPS must be > 0")
		}
		if cfg.rateBurst <= 0 {
			return config{}, errors.New("RATE_BURST must be > 0")
		}
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if _, err := strconv.Atoi(cfg.port); err != nil {
		return config{}, errors.New("PORT must be numeric")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
