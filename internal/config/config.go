package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config/config.yaml"

	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Duration is a time.Duration written in YAML as "10s", "1m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver  string   `yaml:"driver"`
	DSN     string   `yaml:"dsn"`
	Timeout Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

type RealtimeConfig struct {
	SendBuffer      int      `yaml:"send_buffer"`
	WriteWait       Duration `yaml:"write_wait"`
	PongWait        Duration `yaml:"pong_wait"`
	PingPeriod      Duration `yaml:"ping_period"`
	MaxMessageBytes int64    `yaml:"max_message_bytes"`
}

type AuthConfig struct {
	JWTSecret           string `yaml:"jwt_secret"`
	AllowHeaderIdentity bool   `yaml:"allow_header_identity"`
	AnonymousReads      bool   `yaml:"anonymous_reads"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type AppConfig struct {
	Timezone string `yaml:"timezone"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	App      AppConfig      `yaml:"app"`
}

// Load reads path (or TASKBOARD_CONFIG, or DefaultPath), applies environment
// overrides and defaults, and validates the result. A missing file at the
// default path is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if p := os.Getenv("TASKBOARD_CONFIG"); p != "" {
			path, explicit = p, true
		} else {
			path = DefaultPath
		}
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Addr, "TASKBOARD_ADDR")
	set(&c.Database.Driver, "TASKBOARD_DB_DRIVER")
	set(&c.Database.DSN, "TASKBOARD_DB_DSN")
	set(&c.Auth.JWTSecret, "TASKBOARD_JWT_SECRET")
	set(&c.Log.Env, "TASKBOARD_ENV")
	if v := strings.TrimSpace(getenv("TASKBOARD_REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "taskboard.db"
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = Duration(5 * time.Second)
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "taskboard"
	}
	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 256
	}
	if c.Realtime.WriteWait == 0 {
		c.Realtime.WriteWait = Duration(10 * time.Second)
	}
	if c.Realtime.PongWait == 0 {
		c.Realtime.PongWait = Duration(60 * time.Second)
	}
	if c.Realtime.PingPeriod == 0 {
		c.Realtime.PingPeriod = Duration(c.Realtime.PongWait.Std() * 9 / 10)
	}
	if c.Realtime.MaxMessageBytes == 0 {
		c.Realtime.MaxMessageBytes = 64 << 10
	}
	if c.Log.Env == "" {
		c.Log.Env = EnvLocal
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if c.Database.Timeout <= 0 {
		errs = append(errs, errors.New("database.timeout: must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout: must be positive"))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("realtime.send_buffer: must be positive"))
	}
	if c.Realtime.WriteWait <= 0 || c.Realtime.PongWait <= 0 || c.Realtime.PingPeriod <= 0 {
		errs = append(errs, errors.New("realtime: timeouts must be positive"))
	}
	if c.Realtime.PingPeriod >= c.Realtime.PongWait {
		errs = append(errs, errors.New("realtime.ping_period: must be shorter than pong_wait"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr: required when redis is enabled"))
	}
	switch c.Log.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("log.env: unknown environment %q", c.Log.Env))
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the zone in which "today" is decided.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
