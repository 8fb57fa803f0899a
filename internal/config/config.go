// Package config contains the configuration loading logic of the marketplace service.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains the configuration parameters of the marketplace service.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	PushGatewayAddress string        `env:"PUSH_GATEWAY_ADDRESS"`
	AuthSecret         string        `env:"AUTH_SECRET"`
	DispatchInterval   time.Duration `env:"DISPATCH_INTERVAL"`
}

// Parse reads the configuration from command line flags and environment
// variables. Environment variables win.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPushAddress := cfg.PushGatewayAddress
	envAuthSecret := cfg.AuthSecret
	envDispatchInterval := cfg.DispatchInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PushGatewayAddress, "p", "", "push gateway address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for actor tokens")
	flag.DurationVar(&cfg.DispatchInterval, "i", time.Second, "outbox dispatch interval")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPushAddress != "" {
		cfg.PushGatewayAddress = envPushAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envDispatchInterval != 0 {
		cfg.DispatchInterval = envDispatchInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = time.Second
	}

	return cfg, nil
}
