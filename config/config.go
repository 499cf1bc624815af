package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CHAT"

type HTTP struct {
	Addr         string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" envconfig:"IDLE_TIMEOUT"`
}

type GRPC struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

type Logging struct {
	Env       string `yaml:"env" envconfig:"ENV"`             // dev|stage|prod
	Service   string `yaml:"service" envconfig:"SERVICE"`     // chat-service
	Version   string `yaml:"version" envconfig:"VERSION"`     // v0.1.0
	Backend   string `yaml:"backend" envconfig:"BACKEND"`     // std|zap
	Level     string `yaml:"level" envconfig:"LEVEL"`         // debug|info|warn|error
	AddSource bool   `yaml:"addSource" envconfig:"ADD_SOURCE"` // false|true
	Debug     bool   `yaml:"debug" envconfig:"DEBUG"`         // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn" envconfig:"DSN"`
	MaxConns          int32         `yaml:"maxConns" envconfig:"MAX_CONNS"`
	MinConns          int32         `yaml:"minConns" envconfig:"MIN_CONNS"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" envconfig:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" envconfig:"MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" envconfig:"HEALTH_CHECK_PERIOD"`
	ApplicationName   string        `yaml:"applicationName" envconfig:"APPLICATION_NAME"`
	StatementTimeout  time.Duration `yaml:"statementTimeout" envconfig:"STATEMENT_TIMEOUT"`
	ConnectAttempts   int           `yaml:"connectAttempts" envconfig:"CONNECT_ATTEMPTS"`
	ConnectBackoff    time.Duration `yaml:"connectBackoff" envconfig:"CONNECT_BACKOFF"`
}

const (
	AuthModeToken = "token" // users.user_token
	AuthModeJWT   = "jwt"   // RS256 access token от auth-service
)

type Auth struct {
	Mode             string        `yaml:"mode" envconfig:"MODE"`
	JWTPublicKeyPath string        `yaml:"jwtPublicKeyPath" envconfig:"JWT_PUBLIC_KEY_PATH"`
	JWTIssuer        string        `yaml:"jwtIssuer" envconfig:"JWT_ISSUER"`
	JWTAudience      string        `yaml:"jwtAudience" envconfig:"JWT_AUDIENCE"`
	ClockSkew        time.Duration `yaml:"clockSkew" envconfig:"CLOCK_SKEW"`
}

type WS struct {
	PingEvery      time.Duration `yaml:"pingEvery" envconfig:"PING_EVERY"`
	InitTimeout    time.Duration `yaml:"initTimeout" envconfig:"INIT_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT"`
	PersistTimeout time.Duration `yaml:"persistTimeout" envconfig:"PERSIST_TIMEOUT"`
	ReadLimit      int64         `yaml:"readLimit" envconfig:"READ_LIMIT"`
	OutboxLimit    int           `yaml:"outboxLimit" envconfig:"OUTBOX_LIMIT"`
	MaxMessageLen  int           `yaml:"maxMessageLen" envconfig:"MAX_MESSAGE_LEN"`
	AllowedOrigins []string      `yaml:"allowedOrigins" envconfig:"ALLOWED_ORIGINS"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins" envconfig:"ALLOWED_ORIGINS"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http" envconfig:"HTTP"`
	GRPC     GRPC     `yaml:"grpc" envconfig:"GRPC"`
	Logging  Logging  `yaml:"logging" envconfig:"LOGGING"`
	Postgres Postgres `yaml:"postgres" envconfig:"POSTGRES"`
	Auth     Auth     `yaml:"auth" envconfig:"AUTH"`
	WS       WS       `yaml:"ws" envconfig:"WS"`
	CORS     CORS     `yaml:"cors" envconfig:"CORS"`
}

// LoadConfig читает YAML (CONFIG_PATH или ./config/config.yaml),
// затем накладывает переменные окружения CHAT_* (в т.ч. из .env).
func LoadConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}

	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	switch c.Auth.Mode {
	case "":
		c.Auth.Mode = AuthModeToken
	case AuthModeToken:
	case AuthModeJWT:
		if c.Auth.JWTPublicKeyPath == "" {
			return errors.New("auth.jwtPublicKeyPath is required in jwt mode")
		}
	default:
		return fmt.Errorf("auth.mode %q is not supported", c.Auth.Mode)
	}
	if c.Auth.ClockSkew < 0 || c.Auth.ClockSkew > time.Minute {
		return errors.New("auth.clockSkew must be in [0..1m]")
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)

	if c.Postgres.ConnectAttempts <= 0 {
		c.Postgres.ConnectAttempts = 5
	}
	c.Postgres.ConnectBackoff = durationOr(c.Postgres.ConnectBackoff, 500*time.Millisecond)

	c.WS.PingEvery = durationOr(c.WS.PingEvery, 15*time.Second)
	c.WS.InitTimeout = durationOr(c.WS.InitTimeout, 10*time.Second)
	c.WS.WriteTimeout = durationOr(c.WS.WriteTimeout, 5*time.Second)
	c.WS.PersistTimeout = durationOr(c.WS.PersistTimeout, 5*time.Second)
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 64 << 10
	}
	if c.WS.OutboxLimit <= 0 {
		c.WS.OutboxLimit = 1024
	}
	if c.WS.MaxMessageLen <= 0 {
		c.WS.MaxMessageLen = 4000
	}

	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
