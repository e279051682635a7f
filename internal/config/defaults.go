package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultCryptoPrimaryURL   = "https://api.coingecko.com"
	DefaultCryptoSecondaryURL = "https://min-api.cryptocompare.com"
	DefaultPollInterval       = 1 * time.Second
	DefaultFailureThreshold   = 5
	DefaultResetTimeout       = 30 * time.Second
	DefaultReconnectBase      = 5 * time.Second
	DefaultReconnectAttempts  = 5
	DefaultExtendedInterval   = 30 * time.Second
	DefaultBusTimeout         = 3 * time.Second
	DefaultCacheAddr          = "localhost:6379"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
)

// DefaultCryptoAssets is the asset basket polled when none is
// configured.
var DefaultCryptoAssets = []string{"bitcoin", "ethereum", "solana"}

func (c *IngestorConfig) applyDefaults() {
	if c.Instance.LogLevel == "" {
		c.Instance.LogLevel = DefaultLogLevel
	}

	if c.Bus.Timeout == 0 {
		c.Bus.Timeout = DefaultBusTimeout
	}

	if c.Cache.Addr == "" {
		c.Cache.Addr = DefaultCacheAddr
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Breaker defaults
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = DefaultFailureThreshold
	}
	if c.Breaker.ResetTimeout == 0 {
		c.Breaker.ResetTimeout = DefaultResetTimeout
	}

	// Reconnect defaults
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBase
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultReconnectAttempts
	}
	if c.Reconnect.ExtendedInterval == 0 {
		c.Reconnect.ExtendedInterval = DefaultExtendedInterval
	}

	// Crypto feed defaults
	if c.Crypto.PrimaryURL == "" {
		c.Crypto.PrimaryURL = DefaultCryptoPrimaryURL
	}
	if c.Crypto.SecondaryURL == "" {
		c.Crypto.SecondaryURL = DefaultCryptoSecondaryURL
	}
	if len(c.Crypto.Assets) == 0 {
		c.Crypto.Assets = append([]string(nil), DefaultCryptoAssets...)
	}
	if c.Crypto.PollInterval == 0 {
		c.Crypto.PollInterval = DefaultPollInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
