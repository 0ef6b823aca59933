package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Env        string `yaml:"env"`
	BaseURL    string `yaml:"base_url"`
	ShortCode  `yaml:"short_code"`
	Storage    `yaml:"storage"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Tracing    `yaml:"tracing"`
}

// MaxShortCodeLength matches the width of the short_code column.
const MaxShortCodeLength = 32

type ShortCode struct {
	Length     int    `yaml:"length"`
	Alphabet   string `yaml:"alphabet"`
	MaxRetries int    `yaml:"max_retries"`
}

var defaultShortCode = ShortCode{
	Length:     7,
	Alphabet:   "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz",
	MaxRetries: 5,
}

type Storage struct {
	Driver  string        `yaml:"driver"`
	Timeout time.Duration `yaml:"timeout"`
}

var defaultStorage = Storage{
	Driver:  DriverPostgres,
	Timeout: 3 * time.Second,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// TLS reports whether both a certificate and a key are configured.
func (s *HTTPServer) TLS() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	PoolSize    int           `yaml:"pool_size"`
}

var defaultRedis = Redis{
	Addr:        "localhost:6379",
	DialTimeout: 5 * time.Second,
	PoolSize:    10,
}

type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

var defaultTracing = Tracing{
	Endpoint:    "localhost:4317",
	ServiceName: "url-shortener",
}

// Load reads the YAML config at path. ${VAR} references are expanded from
// the environment before decoding.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.ShortCode = defaultShortCode
	cfg.Storage = defaultStorage
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Tracing = defaultTracing
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("unknown env %q", c.Env))
	}

	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("base_url %q must start with http:// or https://", c.BaseURL))
	}

	if c.ShortCode.Length <= 0 || c.ShortCode.Length > MaxShortCodeLength {
		errs = append(errs, fmt.Errorf("short_code.length must be between 1 and %d, got %d", MaxShortCodeLength, c.ShortCode.Length))
	}
	if c.ShortCode.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("short_code.max_retries must be at least 1, got %d", c.ShortCode.MaxRetries))
	}

	switch c.Storage.Driver {
	case DriverPostgres, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("storage.timeout must be positive, got %s", c.Storage.Timeout))
	}

	if c.HTTPServer.Port <= 0 || c.HTTPServer.Port > 65535 {
		errs = append(errs, fmt.Errorf("http_server.port out of range: %d", c.HTTPServer.Port))
	}
	if (c.HTTPServer.CertFile == "") != (c.HTTPServer.KeyFile == "") {
		errs = append(errs, errors.New("http_server.cert_file and http_server.key_file must be set together"))
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}
