// internal/common/config/config.go
package config

import "fmt"

type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Scoring   ScoringConfig           `mapstructure:"scoring"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Timeout   TimeoutConfig           `mapstructure:"timeout"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Storage   StorageConfig           `mapstructure:"storage"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Server    ServerConfig            `mapstructure:"server"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ScoringConfig describes the upstream proxy and the model request.
type ScoringConfig struct {
	BackendURL  string  `mapstructure:"backend_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type RateLimitConfig struct {
	MaxRequestsPerMinute  int `mapstructure:"max_requests_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`
	DefaultRetryDelay     int `mapstructure:"default_retry_delay"` // milliseconds
	MaxRetries            int `mapstructure:"max_retries"`
}

type TimeoutConfig struct {
	Request       int `mapstructure:"request"`         // milliseconds
	RetryBase     int `mapstructure:"retry_base"`      // milliseconds
	MaxRetryDelay int `mapstructure:"max_retry_delay"` // milliseconds, 0 disables the cap
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether a postgres host was configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects where results and history are persisted.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"` // redis | postgres
	KeyPrefix    string `mapstructure:"key_prefix"`
	HistoryLimit int    `mapstructure:"history_limit"`
	ResultTTL    int    `mapstructure:"result_ttl"` // seconds, 0 keeps forever
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}
