package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN       string `envconfig:"PG_DSN" required:"true"`
	PGMaxConns  int32  `envconfig:"PG_MAX_CONNS" default:"10"`
	ApplySchema bool   `envconfig:"APPLY_SCHEMA" default:"false"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	ProfileCacheTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"5m"`

	Auth struct {
		JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
	} `envconfig:""`

	Feed struct {
		DefaultLimit int `envconfig:"FEED_DEFAULT_LIMIT" default:"40"`
		MaxLimit     int `envconfig:"FEED_MAX_LIMIT" default:"100"`
	} `envconfig:""`

	RateLimitRPM int `envconfig:"RATE_LIMIT_RPM" default:"120"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := load()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

func load() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// minJWTSecretLen задаёт минимальную длину секрета подписи токенов.
const minJWTSecretLen = 32

// validate проверяет значения, которые envconfig пропускает при пустой переменной.
func (c AppConfig) validate() error {
	if c.PGDSN == "" {
		return fmt.Errorf("PG_DSN не может быть пустым")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET не может быть пустым")
	}
	if len(c.Auth.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("AUTH_JWT_SECRET должен быть не короче %d символов", minJWTSecretLen)
	}
	return nil
}
