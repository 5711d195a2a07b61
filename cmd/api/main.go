package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"recipe-feed/internal/adapters/api"
	"recipe-feed/internal/adapters/repo"
	"recipe-feed/internal/domain"
	"recipe-feed/internal/infra/cache"
	"recipe-feed/internal/infra/config"
	"recipe-feed/internal/infra/db"
	httpinfra "recipe-feed/internal/infra/http"
	applog "recipe-feed/internal/infra/log"
	"recipe-feed/internal/infra/metrics"
	"recipe-feed/internal/usecase/feed"
	"recipe-feed/internal/usecase/social"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if cfg.ApplySchema {
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось применить схему")
		}
	}

	checks := map[string]api.Pinger{"postgres": store}
	var profiles domain.ProfileRepo = store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		redisCache := cache.NewRedis(rdb, "recipe-feed:")
		checks["redis"] = redisCache
		profiles = repo.NewCachedProfiles(store, redisCache, cfg.ProfileCacheTTL, logger.With().Str("component", "profile_cache").Logger())
	}

	feedService := feed.NewService(store, store, store, profiles,
		feed.Limits{Default: cfg.Feed.DefaultLimit, Max: cfg.Feed.MaxLimit},
		logger.With().Str("component", "feed").Logger())
	socialService := social.NewService(store, store, store, profiles, store,
		logger.With().Str("component", "social").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger(), httpinfra.Options{RateLimitRPM: cfg.RateLimitRPM})
	api.NewHandler(feedService, socialService, checks).Mount(server.Router, httpinfra.BearerAuth(cfg.Auth.JWTSecret))

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		logger.Info().Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки")
	}
}
