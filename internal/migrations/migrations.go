package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"kelime/internal/config"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Диалекты goose
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

const migrationDir = "sql"

//go:embed sql/*.sql
var migrationFS embed.FS

// goose хранит диалект и файловую систему глобально
var gooseMu sync.Mutex

// Up применяет миграции к открытой базе данных
func Up(db *sql.DB, dialect string, logger *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	logger.Info("начало применения миграций", zap.String("dialect", dialect))

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("ошибка установки диалекта: %w", err)
	}

	if err := goose.Up(db, migrationDir); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	logger.Info("миграции успешно применены")
	return nil
}

// RunMigrations применяет миграции к базе данных PostgreSQL
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("postgres", cfg.Database.GetURL())
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных для миграций: %w", err)
	}
	defer db.Close()

	return Up(db, DialectPostgres, logger)
}

// Status выводит статус миграций
func Status(db *sql.DB, dialect string, logger *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	logger.Info("проверка статуса миграций")

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("ошибка установки диалекта: %w", err)
	}

	if err := goose.Status(db, migrationDir); err != nil {
		return fmt.Errorf("ошибка получения статуса миграций: %w", err)
	}

	logger.Info("статус миграций получен")
	return nil
}
