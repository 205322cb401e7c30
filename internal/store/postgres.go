package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kelime/internal/config"
	"kelime/internal/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Коды ошибок PostgreSQL, означающие нехватку места
const (
	pgDiskFull             = "53100"
	pgProgramLimitExceeded = "54000"
)

// Postgres хранилище прогресса в PostgreSQL
type Postgres struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres создает новое подключение к базе данных и применяет миграции
func NewPostgres(cfg *config.Config, logger *zap.Logger) (*Postgres, error) {
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создание пула подключений
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Настройка пула
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Проверка подключения
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	return &Postgres{db: db, logger: logger}, nil
}

// Get возвращает значение по ключу
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := p.db.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return []byte(value), nil
}

// Set сохраняет значение
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := p.db.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("ошибка записи ключа %s: %w", key, mapPostgresError(err))
	}
	return nil
}

// Delete удаляет ключ
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

// Keys возвращает ключи с префиксом
func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT key FROM kv_store WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ключей: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ключа: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения ключей: %w", err)
	}
	return keys, nil
}

// Close закрывает подключение к базе данных
func (p *Postgres) Close() error {
	p.logger.Info("закрытие подключения к базе данных")
	p.db.Close()
	return nil
}

// mapPostgresError приводит нехватку места к ErrQuotaExceeded
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgDiskFull || pgErr.Code == pgProgramLimitExceeded) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
