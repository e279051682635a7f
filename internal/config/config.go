package config

import (
	"time"

	"github.com/joshua-vybe/feedbridge/internal/backoff"
	"github.com/joshua-vybe/feedbridge/internal/store"
)

// IngestorConfig is the root configuration for an ingestor instance.
type IngestorConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Bus        BusConfig        `yaml:"bus"`
	Cache      CacheConfig      `yaml:"cache"`
	Database   store.Config     `yaml:"database"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	Crypto     CryptoConfig     `yaml:"crypto"`
	Kalshi     KalshiConfig     `yaml:"kalshi"`
	Polymarket PolymarketConfig `yaml:"polymarket"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstanceConfig identifies this ingestor.
type InstanceConfig struct {
	ID       string `yaml:"id"`
	AZ       string `yaml:"az"`
	LogLevel string `yaml:"log_level"`
}

// BusConfig holds Kafka settings.
type BusConfig struct {
	Brokers []string      `yaml:"brokers"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds the Redis latest-value cache settings.
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BreakerConfig holds per-source circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// ReconnectConfig holds the shared reconnect backoff settings.
type ReconnectConfig struct {
	BaseDelay        time.Duration `yaml:"base_delay"`
	MaxAttempts      int           `yaml:"max_attempts"`
	ExtendedInterval time.Duration `yaml:"extended_interval"`
}

// Policy converts the reconnect settings to a backoff policy.
func (r ReconnectConfig) Policy() backoff.Policy {
	return backoff.Policy{
		Base:        r.BaseDelay,
		MaxAttempts: r.MaxAttempts,
		Extended:    r.ExtendedInterval,
	}
}

// CryptoConfig holds the polled crypto price feed settings.
type CryptoConfig struct {
	PrimaryURL      string        `yaml:"primary_url"`
	SecondaryURL    string        `yaml:"secondary_url"`
	SecondaryAPIKey string        `yaml:"secondary_api_key"`
	Assets          []string      `yaml:"assets"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// KalshiConfig holds the prediction market push feed settings.
type KalshiConfig struct {
	WSEndpoints      []string      `yaml:"ws_endpoints"`
	RESTEndpoints    []string      `yaml:"rest_endpoints"`
	AuthToken        string        `yaml:"auth_token"`
	Markets          []string      `yaml:"markets"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	FallbackInterval time.Duration `yaml:"fallback_interval"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// PolymarketConfig holds the GraphQL subscription feed settings.
type PolymarketConfig struct {
	WSEndpoints        []string      `yaml:"ws_endpoints"`
	RESTURL            string        `yaml:"rest_url"`
	Markets            []string      `yaml:"markets"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	AckTimeout         time.Duration `yaml:"ack_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
