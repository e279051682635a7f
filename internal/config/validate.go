package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngestorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Bus.Brokers) == 0 {
		return errors.New("bus.brokers is required")
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if c.Breaker.FailureThreshold < 1 {
		return errors.New("breaker.failure_threshold must be >= 1")
	}
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}

	if len(c.Kalshi.Markets) > 0 && len(c.Kalshi.WSEndpoints) == 0 {
		return errors.New("kalshi.ws_endpoints is required when kalshi.markets is set")
	}
	if len(c.Polymarket.Markets) > 0 && len(c.Polymarket.WSEndpoints) == 0 {
		return errors.New("polymarket.ws_endpoints is required when polymarket.markets is set")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (c *IngestorConfig) validateDatabase() error {
	db := c.Database
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	return nil
}
