package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/fetchguard/logger"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file without overriding variables already set.
func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver handles finding config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths if provided, otherwise searches the
// standard locations.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.first(
			fmt.Sprintf("./cmd/%s/config.yml", serviceName),
			"./config/config.yml",
			"./config.yml",
		)
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.first(
			fmt.Sprintf("./cmd/%s/.env", serviceName),
			fmt.Sprintf(".env.%s", serviceName),
			".env",
		)
	}
	return resolved
}

func (cr *Resolver) first(paths ...string) string {
	for _, p := range paths {
		if cr.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	Logger     *logger.Logger
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithLoaderLogger sets the logger used for load warnings.
func WithLoaderLogger(l *logger.Logger) LoaderOption {
	return func(lc *LoaderConfig) { lc.Logger = l }
}

// legacyEnv maps settings keys to extra environment names accepted besides
// the derived one (rate_limit.max_requests reads RATE_LIMIT_MAX_REQUESTS).
var legacyEnv = map[string][]string{
	"rate_limit.max_requests":    {"RATE_LIMIT_REQUESTS"},
	"rate_limit.window_seconds":  {"RATE_LIMIT_WINDOW"},
	"cache.location":             {"CACHE_DIR"},
	"cache.ttl_seconds":          {"CACHE_TTL"},
	"proxy.residential.username": {"IPROYAL_USERNAME"},
	"proxy.residential.password": {"IPROYAL_PASSWORD"},
	"proxy.residential.host":     {"IPROYAL_HOST"},
	"proxy.residential.port":     {"IPROYAL_PORT"},
	"proxy.residential.protocol": {"IPROYAL_PROTOCOL"},
	"proxy.residential.country":  {"IPROYAL_COUNTRY"},
	"proxy.residential.sessions": {"IPROYAL_SESSIONS"},
	"stats_api.port":             {"STATS_PORT"},
}

// LoadConfig loads Settings for a service: YAML file, then .env, then the
// process environment, which wins. A missing file is not an error. The
// result has defaults applied and is validated.
func LoadConfig(serviceName string, opts ...LoaderOption) (*Settings, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}
	log := logger.OrGet(lc.Logger, logger.ComponentConfig)

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	v := viper.New()
	setDefaults(v, serviceName)

	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
		}
	}

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			log.Warn("failed to load .env file", map[string]interface{}{
				"file":            files.EnvFile,
				logger.FieldError: err.Error(),
			})
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		canonical := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, canonical}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// setDefaults registers every key so the environment can reach it.
func setDefaults(v *viper.Viper, serviceName string) {
	v.SetDefault("name", serviceName)
	v.SetDefault("environment", "development")
	v.SetDefault("version", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.rotation", "")
	v.SetDefault("proxy.proxies", []string{})
	v.SetDefault("proxy.server", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("proxy.residential.username", "")
	v.SetDefault("proxy.residential.password", "")
	v.SetDefault("proxy.residential.host", "geo.iproyal.com")
	v.SetDefault("proxy.residential.port", 12321)
	v.SetDefault("proxy.residential.protocol", "http")
	v.SetDefault("proxy.residential.country", "us")
	v.SetDefault("proxy.residential.state", "")
	v.SetDefault("proxy.residential.city", "")
	v.SetDefault("proxy.residential.sessions", 5)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.timeout_seconds", 60)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_seconds", 1)
	v.SetDefault("retry.max_delay_seconds", 60)
	v.SetDefault("retry.backoff_base", 2)
	v.SetDefault("retry.jitter", 0)
	v.SetDefault("retry.rate_limit.enabled", true)
	v.SetDefault("retry.rate_limit.max_retries", 3)
	v.SetDefault("retry.rate_limit.base_delay_seconds", 15)
	v.SetDefault("retry.rate_limit.max_delay_seconds", 300)
	v.SetDefault("retry.network.enabled", true)
	v.SetDefault("retry.network.max_retries", 4)
	v.SetDefault("retry.network.base_delay_seconds", 2)
	v.SetDefault("retry.network.max_delay_seconds", 60)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.backend", "local")
	v.SetDefault("cache.location", "")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("http.base_url", "")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", "")

	v.SetDefault("stats_api.enabled", false)
	v.SetDefault("stats_api.host", "")
	v.SetDefault("stats_api.port", 9090)
	v.SetDefault("stats_api.proxy_check_url", "https://ipv4.icanhazip.com")

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.endpoint", "localhost:4318")
	v.SetDefault("observability.insecure", true)
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.interval_seconds", 15)
}
