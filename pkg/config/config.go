package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Flow     FlowConfig
	CORS     CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAGCADDIE_APP_ENV" required:"true"`
	Port         string `envconfig:"BAGCADDIE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAGCADDIE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAGCADDIE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CacheSuffix returns the environment suffix appended to cache keys.
// Production writes bare keys; every other environment is namespaced so
// staging and production never collide on a shared store.
func (a AppConfig) CacheSuffix() string {
	if a.IsProd() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(a.Env))
}

type RedisConfig struct {
	URL          string        `envconfig:"BAGCADDIE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAGCADDIE_REDIS_ADDR"`
	Password     string        `envconfig:"BAGCADDIE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAGCADDIE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAGCADDIE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAGCADDIE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAGCADDIE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAGCADDIE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAGCADDIE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type UpstreamConfig struct {
	BaseURL     string `envconfig:"BAGCADDIE_UPSTREAM_BASE_URL" required:"true"`
	LocationURL string `envconfig:"BAGCADDIE_UPSTREAM_LOCATION_URL" required:"true"`

	RequestTimeout time.Duration `envconfig:"BAGCADDIE_UPSTREAM_REQUEST_TIMEOUT" default:"10s"`

	// MarketingEventTimeout bounds the best-effort marketing event dispatched
	// during the booking redirect. A slow marketing endpoint must never hold
	// up the user-visible handoff.
	MarketingEventTimeout time.Duration `envconfig:"BAGCADDIE_MARKETING_EVENT_TIMEOUT" default:"2s"`
}

type FlowConfig struct {
	WebsiteURL  string `envconfig:"BAGCADDIE_WEBSITE_URL" required:"true"`
	BookingCode string `envconfig:"BAGCADDIE_BOOKING_CODE" required:"true"`

	ParcelItemID string `envconfig:"BAGCADDIE_PARCEL_ITEM_ID"`
	ParcelName   string `envconfig:"BAGCADDIE_PARCEL_NAME" default:"Standard Golf bags"`
	ParcelDepth  string `envconfig:"BAGCADDIE_PARCEL_DEPTH" default:"14"`
	ParcelHeight string `envconfig:"BAGCADDIE_PARCEL_HEIGHT" default:"48"`
	ParcelWeight string `envconfig:"BAGCADDIE_PARCEL_WEIGHT" default:"48"`
	ParcelWidth  string `envconfig:"BAGCADDIE_PARCEL_WIDTH" default:"14"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BAGCADDIE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}
