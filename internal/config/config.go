// Package config loads the per-instance configuration: a YAML file for
// structure, a .env file (if present) and environment variables for secrets
// like the database DSN.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/openyield/yieldbridge/internal/fixedpoint"
)

type Config struct {
	// Instance is this ledger's name; it is stamped on outbound bridge
	// messages and checked by peers against their allowlist.
	Instance   string `yaml:"instance"`
	ListenAddr string `yaml:"listen_addr"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// Driver is "memory" or "postgres".
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		// OutboundTopic receives this instance's bridge messages;
		// InboundTopic is the peer's outbound topic this instance consumes.
		OutboundTopic string `yaml:"outbound_topic"`
		InboundTopic  string `yaml:"inbound_topic"`
		EventsTopic   string `yaml:"events_topic"`
		GroupID       string `yaml:"group_id"`
	} `yaml:"kafka"`

	Bridge struct {
		Peers  []string `yaml:"peers"`
		Caller string   `yaml:"caller"`
	} `yaml:"bridge"`

	Custody struct {
		Caller string `yaml:"caller"`
	} `yaml:"custody"`

	// CeilingRate is the initial global ceiling as a decimal fraction per
	// second, e.g. "0.05". It only applies to a fresh store; a persisted
	// ceiling always wins.
	CeilingRate string `yaml:"ceiling_rate"`

	Grants []Grant `yaml:"grants"`
}

type Grant struct {
	Caller       string   `yaml:"caller"`
	Capabilities []string `yaml:"capabilities"`
}

func Load(path string) (*Config, error) {
	// Absent .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Instance == "" {
		return fmt.Errorf("config: instance is required")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("config: postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Custody.Caller == "" {
		c.Custody.Caller = "custody"
	}
	if c.Bridge.Caller == "" {
		c.Bridge.Caller = "bridge"
	}
	if _, err := c.ParsedCeilingRate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParsedCeilingRate converts the configured decimal ceiling into its
// fixed-point representation.
func (c *Config) ParsedCeilingRate() (fixedpoint.Rate, error) {
	if c.CeilingRate == "" {
		return 0, nil
	}
	return fixedpoint.ParseRate(c.CeilingRate)
}
