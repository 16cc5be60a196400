package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-topic-relay/internal/infrastructure/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Relay     RelayConfig     `yaml:"relay"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	SSE       SSEConfig       `yaml:"sse"`
	Content   ContentConfig   `yaml:"content"`
	Changes   ChangesConfig   `yaml:"changes"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level         string `yaml:"level"`
	logger.Config `yaml:",inline"`
}

type RelayConfig struct {
	// SendTimeout bounds a single fanout send to one connection.
	SendTimeout time.Duration `yaml:"send_timeout"`
	// DeliveryTimeout bounds one fetch-and-broadcast cycle.
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	// Envelope wraps pushed content as {id,type,data,headers} instead of
	// sending the bare payload.
	Envelope bool `yaml:"envelope"`
}

type WebSocketConfig struct {
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	ReadLimit       int64         `yaml:"read_limit"`
	WriteWait       time.Duration `yaml:"write_wait"`
	PongWait        time.Duration `yaml:"pong_wait"`
}

// PingPeriod must stay below PongWait.
func (w WebSocketConfig) PingPeriod() time.Duration {
	return (w.PongWait * 9) / 10
}

type SSEConfig struct {
	KeepAlive time.Duration `yaml:"keep_alive"`
}

type ContentConfig struct {
	Driver string `yaml:"driver"` // static, sqlite, postgres
	DSN    string `yaml:"dsn"`
	// Default is served by the static driver for topics without content.
	Default map[string]any `yaml:"default"`
}

type ScheduledMark struct {
	Topic string        `yaml:"topic"`
	After time.Duration `yaml:"after"`
	Every time.Duration `yaml:"every"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type ChangesConfig struct {
	Schedule []ScheduledMark `yaml:"schedule"`
	Kafka    KafkaConfig     `yaml:"kafka"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // unbounded: streams are long-lived
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Config: *logger.NewDefaultConfig(),
		},
		Relay: RelayConfig{
			SendTimeout:     10 * time.Second,
			DeliveryTimeout: 30 * time.Second,
			JanitorInterval: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  []string{"*"},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			ReadLimit:       4096,
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
		},
		SSE: SSEConfig{
			KeepAlive: 30 * time.Second,
		},
		Content: ContentConfig{
			Driver:  "static",
			Default: map[string]any{"a": 10, "b": 20},
		},
		Changes: ChangesConfig{
			Kafka: KafkaConfig{GroupID: "topic-relay"},
		},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
	}
}

// Load reads the YAML file at path (optional), applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	out, res := NormalizeAndValidate(*cfg)
	if !res.OK() {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(res.Errors, "; "))
	}
	return &out, nil
}

// LoggerConfig resolves the textual level into the logger's config.
func (c *Config) LoggerConfig() (*logger.Config, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	lc := c.Log.Config
	lc.Level = level
	return &lc, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("RELAY_ADDR", cfg.Server.Addr)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Content.Driver = getEnv("CONTENT_DRIVER", cfg.Content.Driver)
	cfg.Content.DSN = getEnv("CONTENT_DSN", cfg.Content.DSN)
	cfg.Changes.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Changes.Kafka.Topic)
	cfg.Changes.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Changes.Kafka.GroupID)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Changes.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.WebSocket.AllowedOrigins = strings.Split(v, ",")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
