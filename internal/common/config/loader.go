// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults for the scoring proxy and its limits.
const (
	DefaultBackendURL            = "https://openai-proxy-9fk0.onrender.com/api/openai"
	DefaultModel                 = "gpt-4o"
	DefaultMaxTokens             = 2048
	DefaultTemperature           = 0.4
	DefaultMaxRequestsPerMinute  = 50
	DefaultMaxConcurrentRequests = 5
	DefaultRetryDelayMs          = 2000
	DefaultMaxRetries            = 3
	DefaultRequestTimeoutMs      = 30000
	DefaultRetryBaseMs           = 1000
	DefaultMaxRetryDelayMs       = 10000
	DefaultHistoryLimit          = 10
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile reads a single YAML file plus environment overrides.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Scoring.BackendURL == "" {
		if val := os.Getenv("SCORING_BACKEND_URL"); val != "" {
			cfg.Scoring.BackendURL = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "statusai"
	}

	// Scoring proxy
	if cfg.Scoring.BackendURL == "" {
		cfg.Scoring.BackendURL = DefaultBackendURL
	}
	if cfg.Scoring.Model == "" {
		cfg.Scoring.Model = DefaultModel
	}
	if cfg.Scoring.MaxTokens == 0 {
		cfg.Scoring.MaxTokens = DefaultMaxTokens
	}
	if cfg.Scoring.Temperature == 0 {
		cfg.Scoring.Temperature = DefaultTemperature
	}

	if cfg.RateLimit.MaxRequestsPerMinute == 0 {
		cfg.RateLimit.MaxRequestsPerMinute = DefaultMaxRequestsPerMinute
	}
	if cfg.RateLimit.MaxConcurrentRequests == 0 {
		cfg.RateLimit.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if cfg.RateLimit.DefaultRetryDelay == 0 {
		cfg.RateLimit.DefaultRetryDelay = DefaultRetryDelayMs
	}
	if cfg.RateLimit.MaxRetries == 0 {
		cfg.RateLimit.MaxRetries = DefaultMaxRetries
	}

	if cfg.Timeout.Request == 0 {
		cfg.Timeout.Request = DefaultRequestTimeoutMs
	}
	if cfg.Timeout.RetryBase == 0 {
		cfg.Timeout.RetryBase = DefaultRetryBaseMs
	}
	if cfg.Timeout.MaxRetryDelay == 0 {
		cfg.Timeout.MaxRetryDelay = DefaultMaxRetryDelayMs
	}

	// Camunda
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "redis"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "statusai"
	}
	if cfg.Storage.HistoryLimit == 0 {
		cfg.Storage.HistoryLimit = DefaultHistoryLimit
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	// Workers
	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 120000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}
}

func validateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.Scoring.BackendURL, "http://") && !strings.HasPrefix(cfg.Scoring.BackendURL, "https://") {
		return fmt.Errorf("scoring.backend_url must be an http(s) URL")
	}
	if cfg.Scoring.Temperature < 0 || cfg.Scoring.Temperature > 2 {
		return fmt.Errorf("scoring.temperature must be between 0 and 2")
	}
	if cfg.Scoring.MaxTokens < 0 {
		return fmt.Errorf("scoring.max_tokens must not be negative")
	}
	if cfg.RateLimit.MaxRetries < 0 {
		return fmt.Errorf("rate_limit.max_retries must not be negative")
	}
	if cfg.RateLimit.MaxRequestsPerMinute < 0 || cfg.RateLimit.MaxConcurrentRequests < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if cfg.Timeout.MaxRetryDelay < 0 {
		return fmt.Errorf("timeout.max_retry_delay must not be negative")
	}
	if cfg.Storage.HistoryLimit < 1 {
		return fmt.Errorf("storage.history_limit must be at least 1")
	}

	switch cfg.Storage.Backend {
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis storage backend")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" || cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres host, database and user are required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if w, exists := cfg.Workers[workerName]; exists {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if w, exists := cfg.Workers[workerName]; exists {
		return w.Enabled
	}
	return true
}
