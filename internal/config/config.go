// Package config loads service configuration.
//
// Sources are applied in order, each overriding the previous one: built-in
// defaults, a dotenv file, a YAML file, process environment variables, and
// finally command line flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DevJWTSecret signs tokens when no secret is configured. Never use it outside development.
const DevJWTSecret = "dev-only-insecure-jwt-secret"

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Debug   bool          `yaml:"debug"`
	Seed    bool          `yaml:"seed"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              string        `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	LivenessEndpoint  string        `yaml:"liveness_endpoint"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

func Default() Config {
	return Config{
		Debug: false,
		Seed:  true,
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "5001",
			ReadHeaderTimeout: 20 * time.Second, //nolint:gomnd
			RequestTimeout:    10 * time.Second, //nolint:gomnd
			ShutdownTimeout:   4 * time.Second,  //nolint:gomnd
			LivenessEndpoint:  "/liveness",
			AllowedOrigins:    []string{"*"},
		},
		Storage: StorageConfig{
			Driver:       DriverSQLite,
			DSN:          "tours.db",
			MaxOpenConns: 0,
		},
		Auth: AuthConfig{
			JWTSecret:  "",
			TokenTTL:   24 * time.Hour, //nolint:gomnd
			BcryptCost: 10,             //nolint:gomnd
		},
	}
}

// Load builds the configuration from args (without the program name) and the
// process environment.
func Load(args []string) (*Config, error) {
	conf := Default()

	flags := pflag.NewFlagSet("tours", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file (env TOURS_CONFIG)")
	envFile := flags.String("env-file", ".env", "path to a dotenv file; a missing file is ignored")
	host := flags.String("host", conf.Server.Host, "address to listen on")
	port := flags.String("port", conf.Server.Port, "port to listen on")
	driver := flags.String("storage-driver", conf.Storage.Driver, "storage driver: memory, sqlite or postgres")
	dsn := flags.String("storage-dsn", conf.Storage.DSN, "database DSN (sqlite file path or postgres URL)")
	seed := flags.Bool("seed", conf.Seed, "seed demo accounts and tours into an empty database")
	debug := flags.Bool("debug", conf.Debug, "enable debug logging")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	env, err := readEnvFile(*envFile)
	if err != nil {
		return nil, err
	}

	path := *configPath
	if path == "" {
		path = env["TOURS_CONFIG"]
	}

	if path != "" {
		if err = conf.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err = conf.applyEnv(env); err != nil {
		return nil, err
	}

	if flags.Changed("host") {
		conf.Server.Host = *host
	}

	if flags.Changed("port") {
		conf.Server.Port = *port
	}

	if flags.Changed("storage-driver") {
		conf.Storage.Driver = *driver
	}

	if flags.Changed("storage-dsn") {
		conf.Storage.DSN = *dsn
	}

	if flags.Changed("seed") {
		conf.Seed = *seed
	}

	if flags.Changed("debug") {
		conf.Debug = *debug
	}

	if err = conf.Validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// readEnvFile merges the dotenv file with the process environment. Variables
// already set in the process win, as they do with godotenv.Load.
func readEnvFile(path string) (map[string]string, error) {
	env := map[string]string{}

	if path != "" {
		fileEnv, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}

		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return env, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v := env["HOST"]; v != "" {
		c.Server.Host = v
	}

	if v := env["PORT"]; v != "" {
		c.Server.Port = v
	}

	if v := env["JWT_SECRET"]; v != "" {
		c.Auth.JWTSecret = v
	}

	if v := env["DB_DRIVER"]; v != "" {
		c.Storage.Driver = v
	}

	if v := env["DB_PATH"]; v != "" {
		c.Storage.Driver = DriverSQLite
		c.Storage.DSN = v
	}

	if v := env["DB_DSN"]; v != "" {
		c.Storage.DSN = v
	}

	if v := env["CORS_ORIGINS"]; v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	if v := env["DEBUG"]; v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse DEBUG=%q: %w", v, err)
		}

		c.Debug = debug
	}

	return nil
}

func splitList(s string) []string {
	var out []string

	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for driver %s: %w", c.Storage.Driver, ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown storage driver %q: %w", c.Storage.Driver, ErrInvalidConfig)
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q: %w", c.Server.Port, ErrInvalidConfig)
	}

	if c.Server.RequestTimeout <= 0 || c.Server.ReadHeaderTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive: %w", ErrInvalidConfig)
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive: %w", ErrInvalidConfig)
	}

	return nil
}

var ErrInvalidConfig = errors.New("invalid config")
