package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Auth   AuthConfig   `yaml:"auth"`
	Worker WorkerConfig `yaml:"worker"`
	Logger LoggerConfig `yaml:"logger"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

// RedisConfig Redis configuration (presence store)
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig MySQL configuration (task store)
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN builds the MySQL connection string
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// AuthConfig handshake authentication configuration
type AuthConfig struct {
	Secret  string `yaml:"secret"`   // Shared HMAC secret (overridden by FLEETD_SECRET env)
	MaxSkew int    `yaml:"max_skew"` // Max handshake timestamp age in seconds, 0 disables the check
}

// WorkerConfig worker-facing configuration
type WorkerConfig struct {
	HeartbeatInterval int `yaml:"heartbeat_interval"` // Heartbeat period (seconds)
	MetricsTTL        int `yaml:"metrics_ttl"`        // Presence metrics expiry (seconds)
	DefaultTimeout    int `yaml:"default_timeout"`    // Default command timeout (milliseconds)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	cfg.applyDefaults()

	// Secret from environment takes precedence over the file
	if secret := os.Getenv("FLEETD_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}

	GlobalConfig = &cfg
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Worker.HeartbeatInterval == 0 {
		c.Worker.HeartbeatInterval = 5
	}
	if c.Worker.MetricsTTL == 0 {
		c.Worker.MetricsTTL = 60
	}
	if c.Worker.DefaultTimeout == 0 {
		c.Worker.DefaultTimeout = 300000
	}
}
