package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode   string       `mapstructure:"mode"`
	Port   int          `mapstructure:"port"`
	Log    LogConfig    `mapstructure:"log"`
	WS     WSConfig     `mapstructure:"ws"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Chat   ChatConfig   `mapstructure:"chat"`
	Store  StoreConfig  `mapstructure:"store"`
	Events EventsConfig `mapstructure:"events"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type WSConfig struct {
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Backpressure   string        `mapstructure:"backpressure"`
	// HandshakeLimit caps upgrade attempts per client IP per HandshakeWindow.
	HandshakeLimit  int           `mapstructure:"handshake_limit"`
	HandshakeWindow time.Duration `mapstructure:"handshake_window"`
}

type AuthConfig struct {
	// Mode is "jwt" or "static".
	Mode      string        `mapstructure:"mode"`
	Timeout   time.Duration `mapstructure:"timeout"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	// StaticTokens maps token -> user id for the static verifier.
	StaticTokens map[string]string `mapstructure:"static_tokens"`
}

type ChatConfig struct {
	HistoryLimit  int     `mapstructure:"history_limit"`
	MaxContentLen int     `mapstructure:"max_content_len"`
	RateLimit     float64 `mapstructure:"rate_limit"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, redis.
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	StreamMaxLen  int64         `mapstructure:"stream_max_len"`
	RoomsFile     string        `mapstructure:"rooms_file"`
}

type EventsConfig struct {
	NatsURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log.level", "info")

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "5s")
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.allowed_origins", []string{"*"})
	v.SetDefault("ws.backpressure", "kick")
	v.SetDefault("ws.handshake_limit", 30)
	v.SetDefault("ws.handshake_window", "1m")

	v.SetDefault("auth.mode", "jwt")
	v.SetDefault("auth.timeout", "5s")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.max_content_len", 2000)
	v.SetDefault("chat.rate_limit", 5.0)
	v.SetDefault("chat.rate_burst", 10)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "chat.db")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.stream_max_len", 10000)
	v.SetDefault("store.rooms_file", "config/rooms.yaml")

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "chat.room")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Every key can
// be overridden from the environment, e.g. CHAT_AUTH_JWT_SECRET.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(fileName); statErr == nil {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Str("auth", cfg.Auth.Mode).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("config: auth.jwt_secret is required when auth.mode=jwt")
		}
	case "static":
		if len(c.Auth.StaticTokens) == 0 {
			return fmt.Errorf("config: auth.static_tokens is empty")
		}
	default:
		return fmt.Errorf("config: unknown auth.mode %q", c.Auth.Mode)
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		return fmt.Errorf("config: ws.ping_period must be shorter than ws.pong_wait")
	}
	return nil
}
