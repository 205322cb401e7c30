package main

import (
	"context"
	"flag"
	"log"

	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/internal/progress"
	"kelime/internal/store"

	"go.uber.org/zap"
)

func main() {
	var (
		dryRun = flag.Bool("dry-run", false, "Показать исправления без записи в хранилище")
		reset  = flag.Bool("reset", false, "Удалить прогресс и все скачанные главы")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	rules, err := config.LoadRules(cfg.App.RulesPath)
	if err != nil {
		logger.Warn("Файл правил не применен, используются стандартные", zap.Error(err))
	}

	// Подключение к хранилищу
	storage, err := store.New(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к хранилищу", zap.Error(err))
	}
	defer storage.Close()

	ctx := context.Background()
	progressStore := progress.NewStore(storage, clock.Real{}, rules, progress.Options{
		Key:           cfg.Progress.Key,
		OfflinePrefix: cfg.Progress.OfflinePrefix,
	}, logger)

	if *reset {
		err = resetProgress(ctx, progressStore, *dryRun, logger)
	} else {
		err = repairProgress(ctx, progressStore, *dryRun, logger)
	}

	if err != nil {
		logger.Fatal("Ошибка обработки прогресса", zap.Error(err))
	}

	logger.Info("Проверка прогресса завершена успешно")
}

func repairProgress(ctx context.Context, ps *progress.Store, dryRun bool, logger *zap.Logger) error {
	p, report := ps.Inspect(ctx)

	logger.Info("Состояние сохраненного прогресса",
		zap.String("outcome", string(report.Outcome)),
		zap.Int("repairs", len(report.Repairs)),
		zap.Int64("xp", p.XP),
		zap.Int("words", len(p.Words)))

	for _, r := range report.Repairs {
		logger.Info("Исправление", zap.String("field", r.Field), zap.String("reason", r.Reason))
	}

	if !report.Changed() {
		logger.Info("Исправления не требуются")
		return nil
	}

	if dryRun {
		logger.Info("DRY RUN: Исправленный прогресс не записан")
		return nil
	}

	if err := ps.Save(ctx, p); err != nil {
		return err
	}

	logger.Info("Исправленный прогресс записан", zap.String("outcome", string(report.Outcome)))
	return nil
}

func resetProgress(ctx context.Context, ps *progress.Store, dryRun bool, logger *zap.Logger) error {
	if dryRun {
		offline, err := ps.OfflineWords(ctx)
		if err != nil {
			logger.Warn("Ошибка чтения скачанных глав", zap.Error(err))
		}
		logger.Info("DRY RUN: Будет удален прогресс и скачанные главы", zap.Int("offline_words", len(offline)))
		return nil
	}

	if _, err := ps.Reset(ctx); err != nil {
		return err
	}

	logger.Info("Прогресс сброшен")
	return nil
}
