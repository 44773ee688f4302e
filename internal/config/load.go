package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// AIADMIN_QUEUE_MAX_CONCURRENT.
const EnvPrefix = "AIADMIN"

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from config files.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper applies defaults and environment bindings to v, then
// unmarshals and validates the result. Callers that read a specific file or
// bind command-line flags pass their own instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can find it during
// Unmarshal, even keys whose default is empty.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("queue.max_concurrent", 2)
	v.SetDefault("queue.job_timeout", "0s")
	v.SetDefault("queue.retention.schedule", "")
	v.SetDefault("queue.retention.max_age", "24h")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key_hash", "")

	v.SetDefault("docker.binary", "docker")

	v.SetDefault("ollama.binary", "ollama")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.models_path", "")
	v.SetDefault("ollama.timeout", "5m")

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model", "gemini-2.0-flash")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("redis.channel", "ai-admin:task-events")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ai-admin.task-events")

	v.SetDefault("database.url", "")

	v.SetDefault("metrics.enabled", true)
}
