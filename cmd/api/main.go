package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	ausvc "github.com/errolitolopez/user-access-manager/internal/audit/service"
	auth "github.com/errolitolopez/user-access-manager/internal/auth"
	"github.com/errolitolopez/user-access-manager/internal/config"
	"github.com/errolitolopez/user-access-manager/internal/logger"
	"github.com/errolitolopez/user-access-manager/internal/metrics"
	"github.com/errolitolopez/user-access-manager/internal/platform/ratelimit"
	"github.com/errolitolopez/user-access-manager/internal/platform/validation"
	"github.com/errolitolopez/user-access-manager/internal/scheduler"
	"github.com/errolitolopez/user-access-manager/internal/security/token"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
	srepo "github.com/errolitolopez/user-access-manager/internal/settings/repository"
	ssvc "github.com/errolitolopez/user-access-manager/internal/settings/service"
	urepo "github.com/errolitolopez/user-access-manager/internal/users/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.AppEnv)
	log.Info().Str("addr", cfg.AppAddr).Msg("starting api server")

	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DATABASE_URL")
	}
	pgPool, err := pgxpool.NewWithConfig(context.Background(), pgCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create pg pool")
	}
	defer pgPool.Close()

	// Redis is optional; without it rate limiting falls back to the
	// in-process bucket registry.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer redisClient.Close()
	}

	settings := ssvc.New(srepo.New(pgPool))
	if _, err := settings.Refresh(context.Background()); err != nil {
		log.Warn().Err(err).Msg("initial config load failed, reading through until the refresh job succeeds")
	}
	if missing, err := settings.MissingKeys(context.Background(), sdomain.AllKeys()); err == nil && len(missing) > 0 {
		log.Warn().Strs("keys", missing).Msg("configs absent, using built-in defaults")
	}

	pub := ausvc.NewLogger(log)
	cooldown := ausvc.NewCooldown(settings)
	tokens := token.New(settings, cfg)
	registry := ratelimit.NewRegistry(settings, logger.Component(log, "ratelimit"))

	limiter := ratelimit.NewFilter(settings, registry, tokens, cooldown, pub)
	if redisClient != nil {
		limiter = limiter.WithStore(ratelimit.NewRedisStore(redisClient))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(metrics.HTTPMiddleware())
	e.Use(limiter.Middleware())

	e.Validator = validation.New()

	auth.NewRegistrar(pgPool, settings, tokens, cooldown, pub, cfg).Register(e)

	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 500*time.Millisecond)
		defer cancel()

		dbStatus := "ok"
		start := time.Now()
		if err := pgPool.Ping(ctx); err != nil {
			dbStatus = "down"
		}
		metrics.ObserveDBPing(time.Since(start).Seconds())
		metrics.SetDBUp(dbStatus == "ok")

		status := map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
			"db":     dbStatus,
		}
		if redisClient != nil {
			cacheStatus := "ok"
			if _, err := redisClient.Ping(ctx).Result(); err != nil {
				cacheStatus = "down"
			}
			status["cache"] = cacheStatus
		}
		return c.JSON(http.StatusOK, status)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	users := urepo.New(pgPool)
	runner := scheduler.NewRunner(logger.Component(log, "scheduler"))
	runner.Add(&scheduler.UnlockJob{Users: users, Settings: settings, Pub: pub}, cfg.UnlockInterval)
	runner.Add(&scheduler.AccountExpirationJob{Users: users, Pub: pub}, cfg.AccountExpiryInterval)
	runner.Add(&scheduler.CredentialExpirationJob{Users: users, Settings: settings, Pub: pub}, cfg.CredentialCheckInterval)
	runner.Add(&scheduler.CooldownSweepJob{Cooldown: cooldown, Registry: registry, MaxIdle: cfg.CooldownSweepInterval}, cfg.CooldownSweepInterval)
	runner.Add(&scheduler.ConfigRefreshJob{Settings: settings}, cfg.ConfigRefreshInterval)
	runner.Start(context.Background())

	go func() {
		if err := e.Start(cfg.AppAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	runner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
