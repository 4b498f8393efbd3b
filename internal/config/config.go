package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Prowlarr
	ProwlarrURL    string
	ProwlarrAPIKey string

	// Telegram (empty disables delivery)
	TelegramBotToken string
	TelegramChatID   string

	// Polling
	PollInterval       time.Duration // Sleep between cycles, measured from cycle end (default: 1800s)
	MaxConcurrentItems int           // Items processed in parallel (default: 5)

	// Network
	SearchTimeout    time.Duration
	LinkTimeout      time.Duration
	SearchMaxRetries int
	BreakerThreshold int
	BreakerCooldown  time.Duration
	LinkCacheTTL     time.Duration

	// Notifications
	NotifyQueueSize int
	NotifyWorkers   int

	// Server
	ServerPort string
	APIKey     string

	// Paths
	ConfigDir     string
	BlacklistFile string // $CONFIG_DIR/blacklist.txt
	DatabaseFile  string // $CONFIG_DIR/nightwatch.db
	LockFile      string // $CONFIG_DIR/nightwatch.lock

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Tracing
	TracingEnabled     bool
	TracingSampleRatio float64
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	cfg, err := LoadStorage()
	if err != nil {
		return nil, err
	}

	if cfg.ProwlarrURL == "" {
		return nil, fmt.Errorf("PROWLARR_URL is required")
	}
	if cfg.ProwlarrAPIKey == "" {
		return nil, fmt.Errorf("PROWLARR_API_KEY is required")
	}

	return cfg, nil
}

// LoadStorage loads configuration without requiring the Prowlarr settings.
// It serves commands that only touch the local database.
func LoadStorage() (*Config, error) {
	// .env must be read before any key lookup, CONFIG_DIR included
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// a missing .env is fine, the environment alone is enough
	_ = viper.ReadInConfig()

	viper.SetDefault("POLL_INTERVAL_SECONDS", 1800)
	viper.SetDefault("MAX_CONCURRENT_ITEMS", 5)
	viper.SetDefault("SEARCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("LINK_TIMEOUT_SECONDS", 15)
	viper.SetDefault("SEARCH_MAX_RETRIES", 3)
	viper.SetDefault("BREAKER_THRESHOLD", 5)
	viper.SetDefault("BREAKER_COOLDOWN_SECONDS", 60)
	viper.SetDefault("LINK_CACHE_TTL_MINUTES", 360)
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 100)
	viper.SetDefault("NOTIFY_WORKERS", 2)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "nightwatch")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		ProwlarrURL:    viper.GetString("PROWLARR_URL"),
		ProwlarrAPIKey: viper.GetString("PROWLARR_API_KEY"),

		TelegramBotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   viper.GetString("TELEGRAM_CHAT_ID"),

		PollInterval:       seconds("POLL_INTERVAL_SECONDS", 1800),
		MaxConcurrentItems: positive("MAX_CONCURRENT_ITEMS", 5),

		SearchTimeout:    seconds("SEARCH_TIMEOUT_SECONDS", 30),
		LinkTimeout:      seconds("LINK_TIMEOUT_SECONDS", 15),
		SearchMaxRetries: positive("SEARCH_MAX_RETRIES", 3),
		BreakerThreshold: positive("BREAKER_THRESHOLD", 5),
		BreakerCooldown:  seconds("BREAKER_COOLDOWN_SECONDS", 60),
		LinkCacheTTL:     time.Duration(positive("LINK_CACHE_TTL_MINUTES", 360)) * time.Minute,

		NotifyQueueSize: positive("NOTIFY_QUEUE_SIZE", 100),
		NotifyWorkers:   positive("NOTIFY_WORKERS", 2),

		ServerPort: viper.GetString("SERVER_PORT"),
		APIKey:     viper.GetString("API_KEY"),

		ConfigDir:     configDir,
		BlacklistFile: filepath.Join(configDir, "blacklist.txt"),
		DatabaseFile:  filepath.Join(configDir, "nightwatch.db"),
		LockFile:      filepath.Join(configDir, "nightwatch.lock"),

		LogLevel: viper.GetString("LOG_LEVEL"),
		LogFile:  viper.GetString("LOG_FILE"),
		LogJSON:  viper.GetBool("LOG_JSON"),

		TracingEnabled:     viper.GetBool("TRACING_ENABLED"),
		TracingSampleRatio: viper.GetFloat64("TRACING_SAMPLE_RATIO"),
	}

	return cfg, nil
}

// positive reads an int key, falling back to def for non-positive values
func positive(key string, def int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return def
}

func seconds(key string, def int) time.Duration {
	return time.Duration(positive(key, def)) * time.Second
}
