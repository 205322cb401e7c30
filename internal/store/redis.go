package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kelime/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisNamespace = "kelime:"

// Redis хранилище прогресса в Redis
type Redis struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedis подключается к Redis и проверяет соединение
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ошибка проверки подключения к Redis: %w", err)
	}

	logger.Info("успешное подключение к Redis", zap.String("addr", cfg.Addr))

	return &Redis{rdb: rdb, logger: logger}, nil
}

// Get возвращает значение по ключу
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.rdb.Get(ctx, redisNamespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return value, nil
}

// Set сохраняет значение без срока жизни
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, redisNamespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("ошибка записи ключа %s: %w", key, mapRedisError(err))
	}
	return nil
}

// Delete удаляет ключ
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, redisNamespace+key).Err(); err != nil {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

// Keys возвращает ключи с префиксом
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := r.rdb.Scan(ctx, 0, redisNamespace+escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisNamespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ошибка получения ключей: %w", err)
	}
	return keys, nil
}

// Close закрывает подключение к Redis
func (r *Redis) Close() error {
	r.logger.Info("закрытие подключения к Redis")
	return r.rdb.Close()
}

// mapRedisError приводит ошибку нехватки памяти Redis к ErrQuotaExceeded
func mapRedisError(err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

// escapeGlob экранирует спецсимволы шаблона SCAN
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
