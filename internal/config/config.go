package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from configs/config.<env>.yaml.
// Environment variables referenced as ${VAR} in the file are expanded.
type Config struct {
	Server struct {
		Port        int    `yaml:"port"`
		AdminAPIKey string `yaml:"admin_api_key"`
	} `yaml:"server"`

	MySQL struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"mysql"`

	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Billing struct {
		CatalogPath      string `yaml:"catalog_path"`
		InvoiceGraceDays int    `yaml:"invoice_grace_days"`
		SweepSchedule    string `yaml:"sweep_schedule"`
		UsageWarnPercent int    `yaml:"usage_warn_percent"`
	} `yaml:"billing"`
}

// Load reads and parses a YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Billing.CatalogPath == "" {
		cfg.Billing.CatalogPath = "configs/catalog.yaml"
	}
	if cfg.Billing.InvoiceGraceDays == 0 {
		cfg.Billing.InvoiceGraceDays = 7
	}
	if cfg.Billing.SweepSchedule == "" {
		cfg.Billing.SweepSchedule = "@every 5m"
	}
	if cfg.Billing.UsageWarnPercent == 0 {
		cfg.Billing.UsageWarnPercent = 80
	}
}

// DSN builds the MySQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.MySQL.User, c.MySQL.Password, c.MySQL.Host, c.MySQL.Port, c.MySQL.Database)
}
