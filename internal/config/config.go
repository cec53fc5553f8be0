// Package config содержит логику чтения конфигурации магазина растений.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	ReceiptServiceAddress string        `env:"RECEIPT_SERVICE_ADDRESS"`
	AuthSecret            string        `env:"AUTH_SECRET"`
	AdminEmails           []string      `env:"ADMIN_EMAILS" envSeparator:","`
	StorageTimeout        time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envReceiptAddress := cfg.ReceiptServiceAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ReceiptServiceAddress, "r", "", "receipt service address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "auth cookie signing secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envReceiptAddress != "" {
		cfg.ReceiptServiceAddress = envReceiptAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StorageTimeout <= 0 {
		return nil, fmt.Errorf("storage timeout must be positive, got %s", cfg.StorageTimeout)
	}

	return cfg, nil
}
