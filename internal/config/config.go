package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Docker   DockerConfig   `mapstructure:"docker" validate:"required"`
	Ollama   OllamaConfig   `mapstructure:"ollama" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// QueueConfig controls admission and execution of tasks.
type QueueConfig struct {
	MaxConcurrent int             `mapstructure:"max_concurrent" validate:"gte=0"`
	JobTimeout    time.Duration   `mapstructure:"job_timeout" validate:"gte=0"`
	Retention     RetentionConfig `mapstructure:"retention"`
}

// RetentionConfig schedules eviction of old terminal tasks. An empty schedule
// disables the sweeper.
type RetentionConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age" validate:"gte=0"`
}

// AuthConfig contains authentication settings. With both fields empty the
// API is unauthenticated.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	APIKeyHash string `mapstructure:"api_key_hash" validate:"omitempty,startswith=$2"`
}

// Enabled reports whether any credential check is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || a.APIKeyHash != ""
}

// DockerConfig locates the docker CLI.
type DockerConfig struct {
	Binary string `mapstructure:"binary" validate:"required"`
}

// OllamaConfig locates the ollama CLI and daemon.
type OllamaConfig struct {
	Binary     string        `mapstructure:"binary" validate:"required"`
	URL        string        `mapstructure:"url" validate:"required,url"`
	ModelsPath string        `mapstructure:"models_path"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings. The llm_generate
// kind is only available when an API key is set.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	Model        string `mapstructure:"model" validate:"required"`
}

// RedisConfig enables the task state mirror when Addr is set.
type RedisConfig struct {
	Addr    string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Channel string        `mapstructure:"channel"`
}

// KafkaConfig enables the task event stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"omitempty,dive,hostname_port"`
	Topic   string   `mapstructure:"topic"`
}

// DatabaseConfig enables the evicted-task archive when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
