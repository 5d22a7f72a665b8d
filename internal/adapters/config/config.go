package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	HTTP       HTTPConfig       `envconfig:"HTTP"`
	News       NewsConfig       `envconfig:"NEWS"`
	Digest     DigestConfig     `envconfig:"DIGEST"`
	Sentiment  SentimentConfig  `envconfig:"SENTIMENT"`
	Adjust     AdjustConfig     `envconfig:"ADJUST"`
	Storage    StorageConfig    `envconfig:"STORAGE"`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// HTTPConfig represents API server parameters
type HTTPConfig struct {
	Port            string        `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// NewsConfig represents article source configuration
type NewsConfig struct {
	Provider         string        `envconfig:"NEWS_PROVIDER" default:"newsapi"` // newsapi, rss or fallback
	APIKey           string        `envconfig:"NEWS_API_KEY" required:"false"`
	BaseURL          string        `envconfig:"NEWS_BASE_URL" default:"https://newsapi.org/v2/"`
	FeedsFile        string        `envconfig:"NEWS_FEEDS_FILE" default:"configs/feeds.yaml"`
	Country          string        `envconfig:"NEWS_COUNTRY" default:"us"`
	PageSize         int           `envconfig:"NEWS_PAGE_SIZE" default:"20"`
	HeadlineSize     int           `envconfig:"NEWS_HEADLINE_SIZE" default:"50"`
	HeadlineKeep     int           `envconfig:"NEWS_HEADLINE_KEEP" default:"20"`
	Lookback         time.Duration `envconfig:"NEWS_LOOKBACK" default:"72h"`
	FetchTimeout     time.Duration `envconfig:"NEWS_FETCH_TIMEOUT" default:"10s"`
	FetchConcurrency int           `envconfig:"NEWS_FETCH_CONCURRENCY" default:"4"`
	CacheTTL         time.Duration `envconfig:"NEWS_CACHE_TTL" default:"5m"`
}

// DigestConfig represents per-user seen memory parameters
type DigestConfig struct {
	MemoryCapacity int           `envconfig:"DIGEST_MEMORY_CAPACITY" default:"200"`
	MemoryRetain   int           `envconfig:"DIGEST_MEMORY_RETAIN" default:"100"`
	MemoryTTL      time.Duration `envconfig:"DIGEST_MEMORY_TTL" default:"2h"`
}

// SentimentConfig selects the sentiment scorer
type SentimentConfig struct {
	Strategy  string        `envconfig:"SENTIMENT_STRATEGY" default:"keyword"` // keyword, llm or none
	OpenAIKey string        `envconfig:"SENTIMENT_OPENAI_API_KEY" required:"false"`
	Model     string        `envconfig:"SENTIMENT_MODEL" default:"gpt-4o-mini"`
	Timeout   time.Duration `envconfig:"SENTIMENT_TIMEOUT" default:"5s"`
}

// AdjustConfig represents the background auto-adjust worker
type AdjustConfig struct {
	Enabled  bool          `envconfig:"ADJUST_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"ADJUST_INTERVAL" default:"6h"`
	LockTTL  time.Duration `envconfig:"ADJUST_LOCK_TTL" default:"1m"`
}

// StorageConfig selects the preference/history store
type StorageConfig struct {
	Driver         string `envconfig:"STORAGE_DRIVER" default:"postgres"` // postgres or memory
	MigrationsPath string `envconfig:"STORAGE_MIGRATIONS_PATH" default:"migrations"`
	AutoMigrate    bool   `envconfig:"STORAGE_AUTO_MIGRATE" default:"true"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"newsdigest"`
	User     string `envconfig:"DB_USER" default:"newsdigest"`
	Password string `envconfig:"DB_PASSWORD" required:"false"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnectAttempts int           `envconfig:"DB_CONNECT_ATTEMPTS" default:"5"`
}

// RedisConfig represents redis connection parameters
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	PoolSize  int    `envconfig:"REDIS_POOL_SIZE" default:"10"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"newsdigest:"`
}

// ClickHouseConfig represents read-event analytics storage
type ClickHouseConfig struct {
	Enabled       bool          `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host          string        `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port          int           `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database      string        `envconfig:"CLICKHOUSE_DATABASE" default:"newsdigest"`
	User          string        `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password      string        `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"10s"`
}

// TelegramConfig represents Telegram bot configuration
type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"console"` // console or json
	File   string `envconfig:"LOG_FILE" default:""`
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated reads configuration without cross-field checks, for tools
// that only touch storage
func LoadUnvalidated() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.News.Provider {
	case "newsapi", "fallback":
		if c.News.APIKey == "" {
			return fmt.Errorf("news api key is required for provider %q", c.News.Provider)
		}
	case "rss":
	default:
		return fmt.Errorf("unknown news provider %q", c.News.Provider)
	}

	if c.News.PageSize < 1 {
		return fmt.Errorf("news page size must be positive")
	}
	if c.News.FetchTimeout <= 0 {
		return fmt.Errorf("news fetch timeout must be positive")
	}
	if c.News.FetchConcurrency < 1 {
		return fmt.Errorf("news fetch concurrency must be at least 1")
	}

	if c.Digest.MemoryRetain < 0 || c.Digest.MemoryRetain > c.Digest.MemoryCapacity {
		return fmt.Errorf("digest memory retain must be between 0 and capacity (%d)", c.Digest.MemoryCapacity)
	}
	if c.Digest.MemoryTTL <= 0 {
		return fmt.Errorf("digest memory ttl must be positive")
	}

	if c.Sentiment.Timeout <= 0 {
		return fmt.Errorf("sentiment timeout must be positive")
	}

	switch c.Sentiment.Strategy {
	case "keyword", "none":
	case "llm":
		if c.Sentiment.OpenAIKey == "" {
			return fmt.Errorf("openai api key is required for llm sentiment strategy")
		}
	default:
		return fmt.Errorf("unknown sentiment strategy %q", c.Sentiment.Strategy)
	}

	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when telegram is enabled")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// GetAddr returns redis host:port
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
