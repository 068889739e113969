// Package server provides configuration helpers that define runtime defaults,
// validation, and flood-control parameters for the GoChat IRC server.
package server

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection flood control.
// A connection may send Burst lines back to back and is then paced so that
// no more than Burst lines are read per RefillInterval.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// Config holds the server configuration. A *Config is also the read-only
// settings collaborator consulted by command handlers.
type Config struct {
	ServerName        string            `yaml:"hostname"`
	Description       string            `yaml:"description"`
	Port              string            `yaml:"port"`
	WebSocketPort     string            `yaml:"websocket_port"`
	AllowedOrigins    []string          `yaml:"allowed_origins"`
	MOTDPath          string            `yaml:"motd_path"`
	InfoPath          string            `yaml:"info_path"`
	Operators         map[string]string `yaml:"operators"`
	MaxLineLength     int               `yaml:"max_line_length"`
	Workers           int               `yaml:"workers"`
	RateLimit         RateLimitConfig   `yaml:"rate_limit"`
	LoadShedThreshold time.Duration     `yaml:"load_shed_threshold"`
	ShutdownTimeout   time.Duration     `yaml:"shutdown_timeout"`
	// PingInterval is how long a connection may stay silent before it is
	// sent a PING; PingTimeout is how long it then has to send anything back.
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
}

const (
	defaultServerName    = "irc.gochat.local"
	defaultDescription   = "GoChat IRC server"
	defaultPort          = ":6667"
	defaultWebSocketPort = ":8080"
	defaultMaxLineLength = 512
	defaultWorkers       = 4
	defaultBurst         = 5
	defaultShedThreshold = 250 * time.Millisecond
	defaultShutdown      = 10 * time.Second
	defaultPingInterval  = 60 * time.Second
	defaultPingTimeout   = 60 * time.Second

	// websocketDisabled as WEBSOCKET_PORT turns the HTTP gateway off.
	websocketDisabled = "off"
)

func defaultConfig() Config {
	return Config{
		ServerName:    defaultServerName,
		Description:   defaultDescription,
		Port:          defaultPort,
		WebSocketPort: defaultWebSocketPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MOTDPath:      "motd.txt",
		MaxLineLength: defaultMaxLineLength,
		Workers:       defaultWorkers,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: time.Second,
		},
		LoadShedThreshold: defaultShedThreshold,
		ShutdownTimeout:   defaultShutdown,
		PingInterval:      defaultPingInterval,
		PingTimeout:       defaultPingTimeout,
	}
}

// sanitizeConfig returns a deep copy of cfg with invalid values replaced by
// defaults and origins normalized.
func sanitizeConfig(cfg Config) Config {
	if cfg.ServerName == "" {
		cfg.ServerName = defaultServerName
	}

	if cfg.Description == "" {
		cfg.Description = defaultDescription
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = defaultMaxLineLength
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.LoadShedThreshold <= 0 {
		cfg.LoadShedThreshold = defaultShedThreshold
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdown
	}

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}

	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	if allowAll {
		normalizedOrigins = append(normalizedOrigins, "*")
	}
	cfg.AllowedOrigins = normalizedOrigins
	cfg.Operators = maps.Clone(cfg.Operators)

	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	applyEnv(&cfg)
	return &cfg
}

// LoadConfig reads a YAML file over the defaults and then applies
// environment overrides. An empty path behaves like NewConfigFromEnv.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if name := os.Getenv("SERVER_HOSTNAME"); name != "" {
		cfg.ServerName = name
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if port := os.Getenv("WEBSOCKET_PORT"); port != "" {
		if port == websocketDisabled {
			port = ""
		}
		cfg.WebSocketPort = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if path := os.Getenv("MOTD_PATH"); path != "" {
		cfg.MOTDPath = path
	}

	if path := os.Getenv("INFO_PATH"); path != "" {
		cfg.InfoPath = path
	}

	if length := os.Getenv("MAX_LINE_LENGTH"); length != "" {
		cfg.MaxLineLength = parseIntValue(length, cfg.MaxLineLength)
	}

	if workers := os.Getenv("DISPATCH_WORKERS"); workers != "" {
		cfg.Workers = parseIntValue(workers, cfg.Workers)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if interval := os.Getenv("PING_INTERVAL"); interval != "" {
		cfg.PingInterval = parseDuration(interval, cfg.PingInterval)
	}

	if timeout := os.Getenv("PING_TIMEOUT"); timeout != "" {
		cfg.PingTimeout = parseDuration(timeout, cfg.PingTimeout)
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts whole seconds ("2") or a duration ("500ms").
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

// Hostname is the server name used as the prefix of every numeric.
func (c *Config) Hostname() string { return c.ServerName }

// ListenPort is the IRC listen address.
func (c *Config) ListenPort() string { return c.Port }

// MOTDFile is the path of the message-of-the-day file.
func (c *Config) MOTDFile() string { return c.MOTDPath }

// InfoFile is the path of the INFO text, empty for the built-in text.
func (c *Config) InfoFile() string { return c.InfoPath }

// ServerInfo is the free-text server description.
func (c *Config) ServerInfo() string { return c.Description }

// OperatorPassword returns the OPER password configured for name.
func (c *Config) OperatorPassword(name string) (string, bool) {
	p, ok := c.Operators[name]
	return p, ok && p != ""
}
