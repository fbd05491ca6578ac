package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Session  SessionConfig  `mapstructure:"session"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the embedded database settings.
type DatabaseConfig struct {
	// Path is the sqlite database file path. Empty selects the default
	// location under the user's home directory.
	Path string `mapstructure:"path"`
}

// SessionConfig tunes the live session engine. Zero values select the
// engine defaults.
type SessionConfig struct {
	LearningHorizonMinutes int `mapstructure:"learning_horizon_minutes" validate:"gte=0"`
	WaitThresholdSeconds   int `mapstructure:"wait_threshold_seconds"   validate:"gte=0"`
	StoreTimeoutSeconds    int `mapstructure:"store_timeout_seconds"    validate:"gte=0"`
	UndoWindowSeconds      int `mapstructure:"undo_window_seconds"      validate:"gte=0"`
}

// LLMConfig contains the explanation service settings. An empty API key
// disables explanations; the session surfaces a non-fatal error instead.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}
