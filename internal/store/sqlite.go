package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"kelime/internal/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLite хранилище прогресса в локальном файле SQLite
type SQLite struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLite открывает базу SQLite и применяет миграции
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания директории базы данных: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к SQLite: %w", err)
	}

	// SQLite не поддерживает несколько писателей
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrations.Up(db.DB, migrations.DialectSQLite, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("успешное подключение к базе данных SQLite", zap.String("path", path))

	return &SQLite{db: db, logger: logger}, nil
}

// Get возвращает значение по ключу
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv_store WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return []byte(value), nil
}

// Set сохраняет значение
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("ошибка записи ключа %s: %w", key, mapSQLiteError(err))
	}
	return nil
}

// Delete удаляет ключ
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

// Keys возвращает ключи с префиксом
func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	query := `SELECT key FROM kv_store WHERE substr(key, 1, length(?)) = ? ORDER BY key`
	if err := s.db.SelectContext(ctx, &keys, query, prefix, prefix); err != nil {
		return nil, fmt.Errorf("ошибка получения ключей: %w", err)
	}
	return keys, nil
}

// Close закрывает подключение к базе данных
func (s *SQLite) Close() error {
	s.logger.Info("закрытие подключения к базе данных SQLite")
	return s.db.Close()
}

// mapSQLiteError приводит переполнение базы к ErrQuotaExceeded
func mapSQLiteError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
