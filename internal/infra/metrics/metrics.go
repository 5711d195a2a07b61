package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FeedBuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_build_seconds",
		Help:    "Время построения страницы ленты",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	FeedRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_requests_total",
		Help: "Количество запросов ленты",
	}, []string{"type", "status"})

	FeedPoolSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_pool_size",
		Help:    "Размер пула кандидатов ленты",
		Buckets: []float64{0, 10, 50, 100, 200, 400, 600, 800, 1000},
	}, []string{"type"})

	FeedOverrideAdmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_override_admissions_total",
		Help: "Рецепты, прошедшие сверх лимита автора по порогу скора",
	}, []string{"type"})

	SocialActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_actions_total",
		Help: "Подписки и избранное",
	}, []string{"action"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FeedBuildSeconds,
		FeedRequestsTotal,
		FeedPoolSize,
		FeedOverrideAdmissions,
		SocialActionsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	duration := time.Since(start).Seconds()
	status := statusLabel(err)
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveFeedBuild записывает длительность и результат построения ленты.
func ObserveFeedBuild(feedType string, start time.Time, err error) {
	feedType = feedLabel(feedType)
	FeedBuildSeconds.WithLabelValues(feedType).Observe(time.Since(start).Seconds())
	FeedRequestsTotal.WithLabelValues(feedType, statusLabel(err)).Inc()
}

// ObserveFeedPool записывает размер пула кандидатов.
func ObserveFeedPool(feedType string, size int) {
	FeedPoolSize.WithLabelValues(feedLabel(feedType)).Observe(float64(size))
}

// AddFeedOverrides увеличивает счётчик допусков сверх лимита автора.
func AddFeedOverrides(feedType string, n int) {
	if n <= 0 {
		return
	}
	FeedOverrideAdmissions.WithLabelValues(feedLabel(feedType)).Add(float64(n))
}

// IncSocialAction учитывает подписку или добавление в избранное.
func IncSocialAction(action string) {
	SocialActionsTotal.WithLabelValues(action).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// feedLabel не даёт произвольному вводу раздувать кардинальность меток.
func feedLabel(feedType string) string {
	switch feedType {
	case "following", "for_you", "trending":
		return feedType
	default:
		return "invalid"
	}
}
