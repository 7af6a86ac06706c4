// Package config provides configuration management for the background service daemon.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bgservice/internal/host"
	"bgservice/internal/notification"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Sink types accepted in SinkType.
const (
	SinkFile      = "file"
	SinkKafka     = "kafka"
	SinkKafkaRest = "kafkarest"
	SinkRedis     = "redis"
	SinkNone      = "none"
)

// Config is the root configuration structure (Service.json).
type Config struct {
	Name              string             `json:"Name"`
	Notification      NotificationConfig `json:"Notification"`
	Channel           ChannelConfig      `json:"Channel"`
	Host              HostConfig         `json:"Host"`
	AutoStart         bool               `json:"AutoStart"`
	AutoForeground    bool               `json:"AutoForeground"`
	HeartbeatInterval time.Duration      `json:"HeartbeatInterval"`
	SinkType          string             `json:"SinkType"` // "file", "kafka", "kafkarest", "redis" or "none"
	File              FileConfig         `json:"File"`
	Kafka             KafkaConfig        `json:"Kafka"`
	KafkaRest         KafkaRestConfig    `json:"KafkaRest"`
	Redis             RedisConfig        `json:"Redis"`
	SOCKSProxy        SOCKSConfig        `json:"SocksProxy"`
	API               APIConfig          `json:"API"`
}

// NotificationConfig is the content of the foreground notification.
type NotificationConfig struct {
	ID        int    `json:"ID"`
	Title     string `json:"Title"`
	Text      string `json:"Text"`
	IconSize  int    `json:"IconSize"`
	IconColor string `json:"IconColor"` // "#RRGGBB", "#RRGGBBAA" or a colour name
}

// ChannelConfig is the notification channel the foreground notification is posted under.
type ChannelConfig struct {
	ID         string `json:"ID"`
	Name       string `json:"Name"`
	Importance string `json:"Importance"` // none, min, low, default, high
}

// HostConfig contains settings for the in-process service host.
type HostConfig struct {
	Sticky               bool          `json:"Sticky"`
	RestartInitialDelay  time.Duration `json:"RestartInitialDelay"`
	RestartMaxDelay      time.Duration `json:"RestartMaxDelay"`
	AllowBackgroundStart bool          `json:"AllowBackgroundStart"`
	QueueSize            int           `json:"QueueSize"`
}

// FileConfig contains settings for the file event sink.
type FileConfig struct {
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Console    bool   `json:"Console"`
}

// KafkaConfig contains Kafka connection settings.
type KafkaConfig struct {
	Brokers        []string      `json:"Brokers"`
	Topic          string        `json:"Topic"`
	Compression    string        `json:"Compression"`
	RequiredAcks   int           `json:"RequiredAcks"`
	MaxRetries     int           `json:"MaxRetries"`
	RetryBackoff   time.Duration `json:"RetryBackoff"`
	FlushFrequency time.Duration `json:"FlushFrequency"`
	FlushMessages  int           `json:"FlushMessages"`
	Timeout        time.Duration `json:"Timeout"`
	EnableTLS      bool          `json:"EnableTLS"`
	TLSCertFile    string        `json:"TLSCertFile"`
	TLSKeyFile     string        `json:"TLSKeyFile"`
	TLSCAFile      string        `json:"TLSCAFile"`
	SASLEnabled    bool          `json:"SASLEnabled"`
	SASLMechanism  string        `json:"SASLMechanism"`
	SASLUser       string        `json:"SASLUser"`
	SASLPassword   string        `json:"SASLPassword"`
}

// KafkaRestConfig contains settings for the KafkaRest HTTP proxy sink.
type KafkaRestConfig struct {
	Address string `json:"Address"`
	Topic   string `json:"Topic"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Address  string `json:"Address"`
	Password string `json:"Password"`
	DB       int    `json:"DB"`
}

// SOCKSConfig contains SOCKS5 proxy settings.
type SOCKSConfig struct {
	Host string `json:"Host"`
	Port int    `json:"Port"`
}

// APIConfig contains settings for the HTTP control API.
type APIConfig struct {
	Listen string `json:"Listen"`
}

// Enabled reports whether the API should be served. Listen "none" turns it
// off, since an empty value falls back to the default address.
func (a APIConfig) Enabled() bool {
	return a.Listen != "" && a.Listen != "none"
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	hc := host.DefaultConfig()
	return &Config{
		Name: "bgservice",
		Notification: NotificationConfig{
			ID:        notification.DefaultID,
			Title:     notification.DefaultTitle,
			Text:      notification.DefaultText,
			IconSize:  64,
			IconColor: "white",
		},
		Channel: ChannelConfig{
			ID:         notification.DefaultChannelID,
			Name:       notification.DefaultChannelName,
			Importance: notification.ImportanceDefault.String(),
		},
		Host: HostConfig{
			Sticky:               hc.Sticky,
			RestartInitialDelay:  hc.RestartInitialDelay,
			RestartMaxDelay:      hc.RestartMaxDelay,
			AllowBackgroundStart: hc.AllowBackgroundStart,
			QueueSize:            hc.QueueSize,
		},
		AutoStart:         true,
		HeartbeatInterval: 30 * time.Second,
		SinkType:          SinkFile,
		File: FileConfig{
			FilePath:   "log/bgservice/events.jsonl",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			Topic:          "bgservice-events",
			Compression:    "snappy",
			RequiredAcks:   1,
			MaxRetries:     3,
			RetryBackoff:   100 * time.Millisecond,
			FlushFrequency: 500 * time.Millisecond,
			FlushMessages:  100,
			Timeout:        10 * time.Second,
		},
		KafkaRest: KafkaRestConfig{
			Topic: "bgservice-events",
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		API: APIConfig{
			Listen: "127.0.0.1:9470",
		},
	}
}

// Merge applies non-zero values from other to this config. Booleans are
// always copied; the loader resolves omitted booleans to their defaults.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Name != "" {
		c.Name = other.Name
	}

	// Notification and channel
	if other.Notification.ID != 0 {
		c.Notification.ID = other.Notification.ID
	}
	if other.Notification.Title != "" {
		c.Notification.Title = other.Notification.Title
	}
	if other.Notification.Text != "" {
		c.Notification.Text = other.Notification.Text
	}
	if other.Notification.IconSize != 0 {
		c.Notification.IconSize = other.Notification.IconSize
	}
	if other.Notification.IconColor != "" {
		c.Notification.IconColor = other.Notification.IconColor
	}
	if other.Channel.ID != "" {
		c.Channel.ID = other.Channel.ID
	}
	if other.Channel.Name != "" {
		c.Channel.Name = other.Channel.Name
	}
	if other.Channel.Importance != "" {
		c.Channel.Importance = other.Channel.Importance
	}

	// Host
	c.Host.Sticky = other.Host.Sticky
	c.Host.AllowBackgroundStart = other.Host.AllowBackgroundStart
	if other.Host.RestartInitialDelay != 0 {
		c.Host.RestartInitialDelay = other.Host.RestartInitialDelay
	}
	if other.Host.RestartMaxDelay != 0 {
		c.Host.RestartMaxDelay = other.Host.RestartMaxDelay
	}
	if other.Host.QueueSize != 0 {
		c.Host.QueueSize = other.Host.QueueSize
	}

	c.AutoStart = other.AutoStart
	c.AutoForeground = other.AutoForeground
	if other.HeartbeatInterval != 0 {
		c.HeartbeatInterval = other.HeartbeatInterval
	}
	if other.SinkType != "" {
		c.SinkType = other.SinkType
	}

	// File sink
	if other.File.FilePath != "" {
		c.File.FilePath = other.File.FilePath
	}
	if other.File.MaxSizeMB != 0 {
		c.File.MaxSizeMB = other.File.MaxSizeMB
	}
	if other.File.MaxBackups != 0 {
		c.File.MaxBackups = other.File.MaxBackups
	}
	c.File.Console = other.File.Console

	// Kafka sink
	if len(other.Kafka.Brokers) > 0 {
		c.Kafka.Brokers = other.Kafka.Brokers
	}
	if other.Kafka.Topic != "" {
		c.Kafka.Topic = other.Kafka.Topic
	}
	if other.Kafka.Compression != "" {
		c.Kafka.Compression = other.Kafka.Compression
	}
	if other.Kafka.RequiredAcks != 0 {
		c.Kafka.RequiredAcks = other.Kafka.RequiredAcks
	}
	if other.Kafka.MaxRetries != 0 {
		c.Kafka.MaxRetries = other.Kafka.MaxRetries
	}
	if other.Kafka.RetryBackoff != 0 {
		c.Kafka.RetryBackoff = other.Kafka.RetryBackoff
	}
	if other.Kafka.FlushFrequency != 0 {
		c.Kafka.FlushFrequency = other.Kafka.FlushFrequency
	}
	if other.Kafka.FlushMessages != 0 {
		c.Kafka.FlushMessages = other.Kafka.FlushMessages
	}
	if other.Kafka.Timeout != 0 {
		c.Kafka.Timeout = other.Kafka.Timeout
	}
	c.Kafka.EnableTLS = other.Kafka.EnableTLS
	if other.Kafka.TLSCertFile != "" {
		c.Kafka.TLSCertFile = other.Kafka.TLSCertFile
	}
	if other.Kafka.TLSKeyFile != "" {
		c.Kafka.TLSKeyFile = other.Kafka.TLSKeyFile
	}
	if other.Kafka.TLSCAFile != "" {
		c.Kafka.TLSCAFile = other.Kafka.TLSCAFile
	}
	c.Kafka.SASLEnabled = other.Kafka.SASLEnabled
	if other.Kafka.SASLMechanism != "" {
		c.Kafka.SASLMechanism = other.Kafka.SASLMechanism
	}
	if other.Kafka.SASLUser != "" {
		c.Kafka.SASLUser = other.Kafka.SASLUser
	}
	if other.Kafka.SASLPassword != "" {
		c.Kafka.SASLPassword = other.Kafka.SASLPassword
	}

	// KafkaRest sink
	if other.KafkaRest.Address != "" {
		c.KafkaRest.Address = other.KafkaRest.Address
	}
	if other.KafkaRest.Topic != "" {
		c.KafkaRest.Topic = other.KafkaRest.Topic
	}

	// Redis sink
	if other.Redis.Address != "" {
		c.Redis.Address = other.Redis.Address
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}

	if other.SOCKSProxy.Host != "" {
		c.SOCKSProxy.Host = other.SOCKSProxy.Host
	}
	if other.SOCKSProxy.Port != 0 {
		c.SOCKSProxy.Port = other.SOCKSProxy.Port
	}

	if other.API.Listen != "" {
		c.API.Listen = other.API.Listen
	}
}

// NotificationSettings builds the channel and notification the controller posts.
func (c *Config) NotificationSettings() (notification.Channel, notification.Notification, error) {
	imp, err := notification.ParseImportance(strings.ToLower(c.Channel.Importance))
	if err != nil {
		return notification.Channel{}, notification.Notification{}, err
	}
	ch := notification.Channel{
		ID:         c.Channel.ID,
		Name:       c.Channel.Name,
		Importance: imp,
	}

	col, err := notification.ParseColor(c.Notification.IconColor)
	if err != nil {
		return notification.Channel{}, notification.Notification{}, err
	}
	n := notification.Notification{
		ID:        c.Notification.ID,
		ChannelID: ch.ID,
		Title:     c.Notification.Title,
		Text:      c.Notification.Text,
		Icon:      notification.Icon{Size: c.Notification.IconSize, Color: col},
	}

	if err := ch.Validate(); err != nil {
		return notification.Channel{}, notification.Notification{}, err
	}
	if err := n.Validate(); err != nil {
		return notification.Channel{}, notification.Notification{}, err
	}
	return ch, n, nil
}

// HostSettings returns the host configuration.
func (c *Config) HostSettings() host.Config {
	return host.Config{
		Sticky:               c.Host.Sticky,
		RestartInitialDelay:  c.Host.RestartInitialDelay,
		RestartMaxDelay:      c.Host.RestartMaxDelay,
		AllowBackgroundStart: c.Host.AllowBackgroundStart,
		QueueSize:            c.Host.QueueSize,
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: Name is empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.SinkType) {
	case SinkFile, SinkKafka, SinkKafkaRest, SinkRedis, SinkNone:
	default:
		return fmt.Errorf("%w: unknown SinkType %q (supported: file, kafka, kafkarest, redis, none)", ErrInvalidConfig, c.SinkType)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: negative HeartbeatInterval", ErrInvalidConfig)
	}
	if c.Host.QueueSize < 0 {
		return fmt.Errorf("%w: negative Host.QueueSize", ErrInvalidConfig)
	}
	if c.Host.RestartInitialDelay > c.Host.RestartMaxDelay {
		return fmt.Errorf("%w: RestartInitialDelay exceeds RestartMaxDelay", ErrInvalidConfig)
	}
	if _, _, err := c.NotificationSettings(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
