package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Digest   DigestConfig   `mapstructure:"digest" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Publish  PublishConfig  `mapstructure:"publish"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// DigestConfig contains the pipeline tunables.
type DigestConfig struct {
	// StoryLimit caps how many stories are enrolled per day.
	StoryLimit int `mapstructure:"story_limit" validate:"required,gt=0,lte=100"`

	// BatchSize is the default number of articles enriched per batch.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0,lte=50"`

	// MaxRetries is the per-article retry ceiling.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// CommentLimit caps comments fetched per story.
	CommentLimit int `mapstructure:"comment_limit" validate:"gt=0,lte=200"`

	// SummaryMaxLen bounds each generated summary, in characters.
	SummaryMaxLen int `mapstructure:"summary_max_len" validate:"gt=0,lte=2000"`

	// SubrequestSoftLimit triggers a warning when one batch issues more
	// outbound calls than this.
	SubrequestSoftLimit int `mapstructure:"subrequest_soft_limit" validate:"gte=0"`

	// StaleMinutes is how long an article may sit in processing before
	// the recovery sweep reclaims it.
	StaleMinutes int `mapstructure:"stale_minutes" validate:"gt=0"`

	// RetentionDays is the default archive retention window.
	RetentionDays int `mapstructure:"retention_days" validate:"gt=0"`

	// FetchWorkers sizes the content extraction worker pool.
	FetchWorkers int `mapstructure:"fetch_workers" validate:"gt=0,lte=32"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string `mapstructure:"model_name" validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// PublishConfig contains the sink settings. Each sink is enabled by
// filling in its settings; at least one must be configured.
type PublishConfig struct {
	GitHub   GitHubSinkConfig   `mapstructure:"github"`
	Telegram TelegramSinkConfig `mapstructure:"telegram"`
	LocalDir string             `mapstructure:"local_dir"`
}

// GitHubSinkConfig configures the GitHub contents sink.
type GitHubSinkConfig struct {
	Token      string `mapstructure:"token"`
	Owner      string `mapstructure:"owner"`
	Repo       string `mapstructure:"repo"`
	Branch     string `mapstructure:"branch"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// TelegramSinkConfig configures the Telegram bot sink.
type TelegramSinkConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Enabled reports whether the GitHub sink is configured.
func (c GitHubSinkConfig) Enabled() bool {
	return c.Token != "" && c.Owner != "" && c.Repo != ""
}

// Enabled reports whether the Telegram sink is configured.
func (c TelegramSinkConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}
