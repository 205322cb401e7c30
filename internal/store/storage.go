package store

import (
	"context"
	"errors"
	"fmt"

	"kelime/internal/config"

	"go.uber.org/zap"
)

var (
	// ErrNotFound ключ отсутствует в хранилище
	ErrNotFound = errors.New("ключ не найден")
	// ErrQuotaExceeded хранилище переполнено
	ErrQuotaExceeded = errors.New("превышена квота хранилища")
)

// Storage долговременное хранилище ключ-значение
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// New создает хранилище, выбранное в конфигурации
func New(cfg *config.Config, logger *zap.Logger) (Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return NewSQLite(cfg.Storage.SQLitePath, logger)
	case config.BackendPostgres:
		return NewPostgres(cfg, logger)
	case config.BackendRedis:
		return NewRedis(cfg.Redis, logger)
	case config.BackendMemory:
		logger.Warn("используется хранилище в памяти, прогресс не переживет перезапуск")
		return NewMemory(cfg.Storage.QuotaBytes), nil
	default:
		return nil, fmt.Errorf("неизвестное хранилище: %s", cfg.Storage.Backend)
	}
}

// IsQuotaExceeded проверяет, вызвана ли ошибка переполнением хранилища
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// hasPrefix проверяет префикс ключа
func hasPrefix(key, prefix string) bool {
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}
