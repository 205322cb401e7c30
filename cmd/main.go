package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kelime/internal/bot"
	"kelime/internal/catalog"
	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/internal/mastery"
	"kelime/internal/metrics"
	"kelime/internal/progress"
	"kelime/internal/progression"
	"kelime/internal/scheduler"
	"kelime/internal/scheduling"
	"kelime/internal/session"
	"kelime/internal/store"
	"kelime/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger, err := initLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Kelime", zap.String("env", cfg.App.Env))

	rules, err := config.LoadRules(cfg.App.RulesPath)
	if err != nil {
		logger.Warn("файл правил не применен, используются стандартные", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище прогресса, миграции применяются при открытии
	storage, err := store.New(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации хранилища", zap.Error(err))
	}
	defer storage.Close()

	clk := clock.Real{}
	seed := cfg.App.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))

	progressStore := progress.NewStore(storage, clk, rules, progress.Options{
		Key:           cfg.Progress.Key,
		OfflinePrefix: cfg.Progress.OfflinePrefix,
	}, logger)

	// Каталог слов, при недоступности источника используются скачанные главы
	loaded := catalog.NewLoader(cfg.Catalog.Timeout, logger).Load(ctx, cfg.Catalog.Source, progressStore.OfflineWords)
	words := loaded.Catalog
	chapters := words.BuildChapters(rules.Chapters)
	logger.Info("каталог готов",
		zap.String("source", string(loaded.Source)),
		zap.Int("words", words.Len()),
		zap.Int("chapters", len(chapters)))

	// Метрики
	metricsSystem := metrics.New(logger)
	metricsHandler := metrics.NewHandler(metricsSystem, logger)
	metricsHandler.AddCheck("storage", func(ctx context.Context) error {
		_, err := storage.Keys(ctx, cfg.Progress.Key)
		return err
	})
	metricsHandler.AddCheck("catalog", func(context.Context) error {
		if words.Empty() {
			return fmt.Errorf("каталог пуст, источник %s", loaded.Source)
		}
		return nil
	})

	learning := session.New(ctx, session.Deps{
		Store:    progressStore,
		Catalog:  words,
		Engine:   scheduling.NewEngine(words, clk, rnd, rules, logger),
		Tracker:  mastery.NewTracker(progressStore, clk, rules, logger),
		Gate:     progression.NewGate(chapters, words, progressStore, rnd, rules, logger),
		Clock:    clk,
		Rand:     rnd,
		Rules:    rules,
		Recorder: metricsSystem,
	}, logger)

	// Инициализация Telegram бота
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
	}

	logger.Info("Telegram бот инициализирован",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("chat_id", cfg.Telegram.ChatID))

	view := bot.NewTelegram(botAPI, cfg.Telegram.ChatID, logger)
	handler := bot.NewHandler(learning, view, cfg.Telegram.ChatID, logger)

	if loaded.Notice != nil {
		if err := view.Notify(ctx, []models.Notice{*loaded.Notice}); err != nil {
			logger.Warn("ошибка отправки уведомления о каталоге", zap.Error(err))
		}
	}

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger).WithRecorder(metricsSystem)
	taskScheduler.AddJob(scheduler.NewHeartsRefillJob(handler, view, logger))
	taskScheduler.AddJob(scheduler.NewChallengeTimerJob(handler, view, logger))
	taskScheduler.AddJob(scheduler.NewStreakReminderJob(handler, view, clk, logger))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runMetricsServer(gctx, cfg.App.Port, metricsHandler, logger)
	})

	g.Go(func() error {
		taskScheduler.Start(gctx, cfg.App.HeartsJobInterval)
		return nil
	})

	g.Go(func() error {
		handleUpdates(gctx, botAPI, handler, logger)
		return nil
	})

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)),
	)

	<-gctx.Done()
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")
	botAPI.StopReceivingUpdates()

	if err := g.Wait(); err != nil {
		logger.Error("приложение завершено с ошибкой", zap.Error(err))
		return
	}
	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер
func initLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stdout", "logs/app.log"}
	config.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", level, err)
		}
		config.Level = lvl
	}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return config.Build()
}

// handleUpdates обрабатывает обновления от Telegram.
// Обработчик сериализует доступ к сессии, поэтому обновления идут по очереди.
func handleUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger *zap.Logger) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}

			if err := handler.HandleUpdate(ctx, update); err != nil {
				var chatID int64
				if update.Message != nil {
					chatID = update.Message.Chat.ID
				} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
					chatID = update.CallbackQuery.Message.Chat.ID
				}

				logger.Error("ошибка обработки обновления",
					zap.Int64("chat_id", chatID),
					zap.Error(err))
			}

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			return
		}
	}
}

// runMetricsServer запускает HTTP сервер метрик и health check
func runMetricsServer(ctx context.Context, port int, handler *metrics.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP сервер метрик запущен", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ошибка HTTP сервера метрик: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка при остановке HTTP сервера метрик", zap.Error(err))
	}

	logger.Info("HTTP сервер метрик остановлен")
	return nil
}
