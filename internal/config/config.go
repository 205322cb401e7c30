package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Поддерживаемые хранилища прогресса
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	Telegram TelegramConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Progress ProgressConfig
	App      AppConfig
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// StorageConfig выбор хранилища прогресса
type StorageConfig struct {
	Backend    string
	SQLitePath string
	QuotaBytes int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig содержит настройки Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CatalogConfig содержит источник словаря
type CatalogConfig struct {
	Source  string
	Timeout time.Duration
}

// ProgressConfig содержит ключи хранения прогресса
type ProgressConfig struct {
	Key           string
	OfflinePrefix string
}

type AppConfig struct {
	Env               string
	LogLevel          string
	Port              int
	RulesPath         string
	RandomSeed        int64
	HeartsJobInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = getEnvInt64Default("TELEGRAM_CHAT_ID", 0)

	// Storage
	cfg.Storage.Backend = getEnvDefault("STORAGE_BACKEND", BackendSQLite)
	cfg.Storage.SQLitePath = getEnvDefault("SQLITE_PATH", "data/kelime.db")
	cfg.Storage.QuotaBytes = getEnvIntDefault("STORAGE_QUOTA_BYTES", 5*1024*1024)

	// Database
	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvIntDefault("REDIS_DB", 0)

	// Catalog
	cfg.Catalog.Source = getEnvDefault("CATALOG_SOURCE", "data/words.json")
	cfg.Catalog.Timeout = time.Duration(getEnvIntDefault("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second

	// Progress
	cfg.Progress.Key = getEnvDefault("PROGRESS_KEY", "learningProgress")
	cfg.Progress.OfflinePrefix = getEnvDefault("OFFLINE_PREFIX", "offline_")

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 8080)
	cfg.App.RulesPath = os.Getenv("RULES_PATH")
	cfg.App.RandomSeed = getEnvInt64Default("RANDOM_SEED", 0)
	cfg.App.HeartsJobInterval = time.Duration(getEnvIntDefault("HEARTS_JOB_INTERVAL_MINUTES", 5)) * time.Minute

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvInt64Default(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не установлен")
	}
	if config.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID не установлен")
	}
	switch config.Storage.Backend {
	case BackendSQLite:
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не установлен")
		}
	case BackendPostgres:
		if config.Database.User == "" {
			return fmt.Errorf("DB_USER не установлен")
		}
		if config.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD не установлен")
		}
		if config.Database.Name == "" {
			return fmt.Errorf("DB_NAME не установлен")
		}
	case BackendRedis:
		if config.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR не установлен")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("поддерживаются только STORAGE_BACKEND: sqlite, postgres, redis, memory")
	}
	if config.Progress.Key == "" {
		return fmt.Errorf("PROGRESS_KEY не может быть пустым")
	}
	if config.Progress.OfflinePrefix == "" {
		return fmt.Errorf("OFFLINE_PREFIX не может быть пустым")
	}

	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetURL возвращает строку подключения в формате URL для миграций
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
