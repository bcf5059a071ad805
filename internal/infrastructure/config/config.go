package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/lightrelay/internal/color"
)

// DefaultPath is the configuration file used when LIGHTRELAY_CONFIG is unset.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for lightrelay.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Chat      ChatConfig      `yaml:"chat"`
	Devices   DevicesConfig   `yaml:"devices"`
	Colors    []ColorConfig   `yaml:"colors"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChatConfig contains the chat transports that deliver commands.
type ChatConfig struct {
	// Prefix marks a message as a command. Default: "&"
	Prefix  string         `yaml:"prefix"`
	Discord DiscordConfig  `yaml:"discord"`
	MQTT    MQTTChatConfig `yaml:"mqtt"`
}

// DiscordConfig contains Discord bot settings.
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// MQTTChatConfig enables the MQTT command transport. It uses the broker
// configured in the mqtt section.
type MQTTChatConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DevicesConfig lists the lights the relay controls.
type DevicesConfig struct {
	// Addresses are host or host:port entries, in fleet order.
	Addresses []string `yaml:"addresses"`

	// Port is used for addresses without one. Default: 55443
	Port int `yaml:"port"`

	// ConnectTimeout bounds each TCP dial at startup. Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds each request/response exchange. Default: 5s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ColorConfig is an extra named color appended to the built-in table.
type ColorConfig struct {
	Name  string `yaml:"name"`
	Red   uint8  `yaml:"red"`
	Green uint8  `yaml:"green"`
	Blue  uint8  `yaml:"blue"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LIGHTRELAY_SECTION_KEY
// For example: LIGHTRELAY_DATABASE_PATH, LIGHTRELAY_MQTT_HOST.
// DISCORD_TOKEN and BULBS are also honoured.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadFromEnvironment loads the file named by LIGHTRELAY_CONFIG.
//
// When LIGHTRELAY_CONFIG is unset and DefaultPath does not exist, the
// configuration is built from defaults and environment variables alone, so
// a deployment with only DISCORD_TOKEN and BULBS set keeps working.
func LoadFromEnvironment() (*Config, error) {
	if path := os.Getenv("LIGHTRELAY_CONFIG"); path != "" {
		return Load(path)
	}

	if _, err := os.Stat(DefaultPath); errors.Is(err, fs.ErrNotExist) {
		return finish(defaultConfig())
	}
	return Load(DefaultPath)
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			Prefix: "&",
			Discord: DiscordConfig{
				Enabled: true,
			},
		},
		Devices: DevicesConfig{
			Port:           55443,
			ConnectTimeout: 10 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/lightrelay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lightrelay",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/lightrelay.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Chat
	if v := os.Getenv("LIGHTRELAY_CHAT_PREFIX"); v != "" {
		cfg.Chat.Prefix = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Chat.Discord.Token = v
	}
	if v := os.Getenv("LIGHTRELAY_DISCORD_TOKEN"); v != "" {
		cfg.Chat.Discord.Token = v
	}

	// Devices
	for _, name := range []string{"BULBS", "LIGHTRELAY_DEVICES_ADDRESSES"} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		addrs, err := ParseAddressList(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		cfg.Devices.Addresses = addrs
	}

	// Database
	if v := os.Getenv("LIGHTRELAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("LIGHTRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LIGHTRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LIGHTRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LIGHTRELAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("LIGHTRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("LIGHTRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// ParseAddressList splits a comma-separated device list. Whitespace around
// entries is ignored; an empty entry is an error.
func ParseAddressList(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	addrs := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("address list %q: entry %d is empty", raw, i+1)
		}
		addrs = append(addrs, p)
	}
	return addrs, nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	// Chat validation
	if strings.TrimSpace(c.Chat.Prefix) == "" {
		errs = append(errs, "chat.prefix is required")
	}
	if c.Chat.Discord.Enabled && c.Chat.Discord.Token == "" {
		errs = append(errs, "chat.discord.token is required (set DISCORD_TOKEN environment variable)")
	}
	if c.Chat.MQTT.Enabled && !c.MQTT.Enabled {
		errs = append(errs, "chat.mqtt requires mqtt.enabled")
	}
	if !c.Chat.Discord.Enabled && !c.Chat.MQTT.Enabled {
		errs = append(errs, "at least one chat transport must be enabled")
	}

	// Device validation
	for i, addr := range c.Devices.Addresses {
		if strings.TrimSpace(addr) == "" {
			errs = append(errs, fmt.Sprintf("devices.addresses[%d] is empty", i))
		}
	}
	if c.Devices.Port < 1 || c.Devices.Port > 65535 {
		errs = append(errs, "devices.port must be between 1 and 65535")
	}
	if c.Devices.ConnectTimeout <= 0 {
		errs = append(errs, "devices.connect_timeout must be positive")
	}
	if c.Devices.RequestTimeout <= 0 {
		errs = append(errs, "devices.request_timeout must be positive")
	}

	// Color validation
	if _, err := color.WithDefaults(c.ColorEntries()...); err != nil {
		errs = append(errs, fmt.Sprintf("colors: %v", err))
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	// Logging validation
	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required for file output")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ColorEntries converts the configured extra colors into table entries.
func (c *Config) ColorEntries() []color.Entry {
	entries := make([]color.Entry, 0, len(c.Colors))
	for _, cc := range c.Colors {
		entries = append(entries, color.Entry{
			Name:  cc.Name,
			Color: color.RGB{Red: cc.Red, Green: cc.Green, Blue: cc.Blue},
		})
	}
	return entries
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
