package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"bgservice/internal/logger"
)

// rawConfig is used for JSON unmarshaling with duration strings. Booleans
// are pointers so omitted keys keep their defaults.
type rawConfig struct {
	Name              string             `json:"Name"`
	Notification      NotificationConfig `json:"Notification"`
	Channel           ChannelConfig      `json:"Channel"`
	Host              rawHostConfig      `json:"Host"`
	AutoStart         *bool              `json:"AutoStart"`
	AutoForeground    *bool              `json:"AutoForeground"`
	HeartbeatInterval string             `json:"HeartbeatInterval"`
	SinkType          string             `json:"SinkType"`
	File              rawFileConfig      `json:"File"`
	Kafka             rawKafkaConfig     `json:"Kafka"`
	KafkaRest         KafkaRestConfig    `json:"KafkaRest"`
	Redis             RedisConfig        `json:"Redis"`
	SOCKSProxy        SOCKSConfig        `json:"SocksProxy"`
	API               APIConfig          `json:"API"`
}

type rawHostConfig struct {
	Sticky               *bool  `json:"Sticky"`
	RestartInitialDelay  string `json:"RestartInitialDelay"`
	RestartMaxDelay      string `json:"RestartMaxDelay"`
	AllowBackgroundStart *bool  `json:"AllowBackgroundStart"`
	QueueSize            int    `json:"QueueSize"`
}

type rawFileConfig struct {
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Console    *bool  `json:"Console"`
}

type rawKafkaConfig struct {
	Brokers        []string `json:"Brokers"`
	Topic          string   `json:"Topic"`
	Compression    string   `json:"Compression"`
	RequiredAcks   int      `json:"RequiredAcks"`
	MaxRetries     int      `json:"MaxRetries"`
	RetryBackoff   string   `json:"RetryBackoff"`
	FlushFrequency string   `json:"FlushFrequency"`
	FlushMessages  int      `json:"FlushMessages"`
	Timeout        string   `json:"Timeout"`
	EnableTLS      bool     `json:"EnableTLS"`
	TLSCertFile    string   `json:"TLSCertFile"`
	TLSKeyFile     string   `json:"TLSKeyFile"`
	TLSCAFile      string   `json:"TLSCAFile"`
	SASLEnabled    bool     `json:"SASLEnabled"`
	SASLMechanism  string   `json:"SASLMechanism"`
	SASLUser       string   `json:"SASLUser"`
	SASLPassword   string   `json:"SASLPassword"`
}

type rawLoggingConfig struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   bool   `json:"Compress"`
	Console    bool   `json:"Console"`
	Format     string `json:"Format"`
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from JSON bytes and validates the result.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg := DefaultConfig()
	parsed, err := convertRawConfig(&raw, cfg)
	if err != nil {
		return nil, err
	}

	cfg.Merge(parsed)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func convertRawConfig(raw *rawConfig, def *Config) (*Config, error) {
	cfg := &Config{
		Name:           raw.Name,
		Notification:   raw.Notification,
		Channel:        raw.Channel,
		AutoStart:      boolOr(raw.AutoStart, def.AutoStart),
		AutoForeground: boolOr(raw.AutoForeground, def.AutoForeground),
		SinkType:       raw.SinkType,
		File: FileConfig{
			FilePath:   raw.File.FilePath,
			MaxSizeMB:  raw.File.MaxSizeMB,
			MaxBackups: raw.File.MaxBackups,
			Console:    boolOr(raw.File.Console, def.File.Console),
		},
		KafkaRest:  raw.KafkaRest,
		Redis:      raw.Redis,
		SOCKSProxy: raw.SOCKSProxy,
		API:        raw.API,
	}

	cfg.Host = HostConfig{
		Sticky:               boolOr(raw.Host.Sticky, def.Host.Sticky),
		AllowBackgroundStart: boolOr(raw.Host.AllowBackgroundStart, def.Host.AllowBackgroundStart),
		QueueSize:            raw.Host.QueueSize,
	}
	cfg.Kafka = KafkaConfig{
		Brokers:       raw.Kafka.Brokers,
		Topic:         raw.Kafka.Topic,
		Compression:   raw.Kafka.Compression,
		RequiredAcks:  raw.Kafka.RequiredAcks,
		MaxRetries:    raw.Kafka.MaxRetries,
		FlushMessages: raw.Kafka.FlushMessages,
		EnableTLS:     raw.Kafka.EnableTLS,
		TLSCertFile:   raw.Kafka.TLSCertFile,
		TLSKeyFile:    raw.Kafka.TLSKeyFile,
		TLSCAFile:     raw.Kafka.TLSCAFile,
		SASLEnabled:   raw.Kafka.SASLEnabled,
		SASLMechanism: raw.Kafka.SASLMechanism,
		SASLUser:      raw.Kafka.SASLUser,
		SASLPassword:  raw.Kafka.SASLPassword,
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"HeartbeatInterval", raw.HeartbeatInterval, &cfg.HeartbeatInterval},
		{"Host.RestartInitialDelay", raw.Host.RestartInitialDelay, &cfg.Host.RestartInitialDelay},
		{"Host.RestartMaxDelay", raw.Host.RestartMaxDelay, &cfg.Host.RestartMaxDelay},
		{"Kafka.RetryBackoff", raw.Kafka.RetryBackoff, &cfg.Kafka.RetryBackoff},
		{"Kafka.FlushFrequency", raw.Kafka.FlushFrequency, &cfg.Kafka.FlushFrequency},
		{"Kafka.Timeout", raw.Kafka.Timeout, &cfg.Kafka.Timeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.field, d.value)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	return cfg, nil
}

// parseDuration returns 0 for an empty string so Merge keeps the default.
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return d, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func convertRawLogging(raw *rawLoggingConfig) logger.Config {
	return logger.Config{
		Level:      raw.Level,
		FilePath:   raw.FilePath,
		MaxSizeMB:  raw.MaxSizeMB,
		MaxBackups: raw.MaxBackups,
		MaxAgeDays: raw.MaxAgeDays,
		Compress:   raw.Compress,
		Console:    raw.Console,
		Format:     raw.Format,
	}
}

// LoadLogging reads logging configuration from the specified file path.
func LoadLogging(path string) (*logger.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return ParseLogging(data)
}

// ParseLogging parses logging configuration from JSON bytes.
func ParseLogging(data []byte) (*logger.Config, error) {
	var raw rawLoggingConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse logging config JSON: %w", err)
	}

	def := logger.DefaultConfig()
	parsed := convertRawLogging(&raw)

	// Merge: apply non-zero parsed values over defaults
	if parsed.Level != "" {
		def.Level = parsed.Level
	}
	if parsed.FilePath != "" {
		def.FilePath = parsed.FilePath
	}
	if parsed.MaxSizeMB != 0 {
		def.MaxSizeMB = parsed.MaxSizeMB
	}
	if parsed.MaxBackups != 0 {
		def.MaxBackups = parsed.MaxBackups
	}
	if parsed.MaxAgeDays != 0 {
		def.MaxAgeDays = parsed.MaxAgeDays
	}
	def.Compress = parsed.Compress
	def.Console = parsed.Console
	switch parsed.Format {
	case "":
	case "json", "fixed":
		def.Format = parsed.Format
	default:
		return nil, fmt.Errorf("unsupported log format %q: must be \"json\" or \"fixed\"", parsed.Format)
	}

	return &def, nil
}

// LoadSplit loads configuration from two separate files:
// configPath (Service.json) and loggingPath (Logging.json).
func LoadSplit(configPath, loggingPath string) (*Config, *logger.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	lc, err := LoadLogging(loggingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
	}

	return cfg, lc, nil
}
