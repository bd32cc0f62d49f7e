package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file. Environment variables take precedence over values from config
// files. Returns a populated Config struct or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment is the primary
		// source in deployment.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so bind
	// every key explicitly.
	for _, key := range allKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if !cfg.Publish.GitHub.Enabled() && !cfg.Publish.Telegram.Enabled() && cfg.Publish.LocalDir == "" {
		return nil, fmt.Errorf("config validation failed: at least one publish sink must be configured")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("digest.story_limit", 30)
	v.SetDefault("digest.batch_size", 5)
	v.SetDefault("digest.max_retries", 3)
	v.SetDefault("digest.comment_limit", 30)
	v.SetDefault("digest.summary_max_len", 300)
	v.SetDefault("digest.subrequest_soft_limit", 40)
	v.SetDefault("digest.stale_minutes", 30)
	v.SetDefault("digest.retention_days", 30)
	v.SetDefault("digest.fetch_workers", 5)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
}

func allKeys() []string {
	return []string{
		"server.port",
		"server.log_level",
		"database.url",
		"digest.story_limit",
		"digest.batch_size",
		"digest.max_retries",
		"digest.comment_limit",
		"digest.summary_max_len",
		"digest.subrequest_soft_limit",
		"digest.stale_minutes",
		"digest.retention_days",
		"digest.fetch_workers",
		"llm.gemini_api_key",
		"llm.model_name",
		"llm.max_retries",
		"llm.retry_delay_seconds",
		"publish.github.token",
		"publish.github.owner",
		"publish.github.repo",
		"publish.github.branch",
		"publish.github.path_prefix",
		"publish.telegram.bot_token",
		"publish.telegram.chat_id",
		"publish.local_dir",
	}
}
