package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики обучения
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// Счетчики
	answers            *prometheus.CounterVec
	xpEarned           *prometheus.CounterVec
	levelUps           prometheus.Counter
	leaguePromotions   *prometheus.CounterVec
	chapterCompletions prometheus.Counter
	persistenceErrors  prometheus.Counter
	progressRepairs    *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec

	// Гистограммы
	poolSize    *prometheus.HistogramVec
	xpPerAction prometheus.Histogram
	jobDuration *prometheus.HistogramVec

	// Gauge метрики
	hearts prometheus.Gauge
	streak prometheus.Gauge

	// Мьютекс для thread-safety
	mu sync.RWMutex
}

// New создает метрики в собственном реестре
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),

		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kelime_answers_total",
				Help: "Количество ответов",
			},
			[]string{"mode", "result"}, // result: correct, wrong
		),

		xpEarned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kelime_xp_earned_total",
				Help: "Общее количество заработанного опыта",
			},
			[]string{"source"}, // answer, daily_goal, chapter, test, chest, gift
		),

		levelUps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kelime_level_ups_total",
				Help: "Количество повышений уровня",
			},
		),

		leaguePromotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kelime_league_promotions_total",
				Help: "Количество переходов в лигу",
			},
			[]string{"league"},
		),

		chapterCompletions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kelime_chapter_completions_total",
				Help: "Количество завершенных глав",
			},
		),

		persistenceErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kelime_persistence_errors_total",
				Help: "Количество неудачных сохранений прогресса",
			},
		),

		progressRepairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kelime_progress_repairs_total",
				Help: "Количество исправлений сохраненного прогресса",
			},
			[]string{"outcome"}, // fresh, malformed, wiped, repaired
		),

		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kelime_scheduler_job_runs_total",
				Help: "Количество запусков фоновых задач",
			},
			[]string{"job", "result"}, // result: ok, error
		),

		poolSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kelime_word_pool_size",
				Help:    "Размер пула слов при выборе",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"mode"},
		),

		xpPerAction: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kelime_xp_per_action",
				Help:    "Количество опыта за одно начисление",
				Buckets: []float64{5, 10, 25, 50, 75, 100, 150},
			},
		),

		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kelime_scheduler_job_duration_seconds",
				Help:    "Время выполнения фоновой задачи",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),

		hearts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kelime_hearts",
				Help: "Текущее количество сердец",
			},
		),

		streak: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kelime_streak_days",
				Help: "Текущая серия дней",
			},
		),
	}

	m.registry.MustRegister(
		m.answers,
		m.xpEarned,
		m.levelUps,
		m.leaguePromotions,
		m.chapterCompletions,
		m.persistenceErrors,
		m.progressRepairs,
		m.jobRuns,
		m.poolSize,
		m.xpPerAction,
		m.jobDuration,
		m.hearts,
		m.streak,
	)

	return m
}

// IncrementCounter увеличивает счетчик
func (m *Metrics) IncrementCounter(name string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "answers_total":
		m.answers.WithLabelValues(labels...).Inc()
	case "xp_earned_total":
		m.xpEarned.WithLabelValues(labels...).Inc()
	case "level_ups_total":
		m.levelUps.Inc()
	case "league_promotions_total":
		m.leaguePromotions.WithLabelValues(labels...).Inc()
	case "chapter_completions_total":
		m.chapterCompletions.Inc()
	case "persistence_errors_total":
		m.persistenceErrors.Inc()
	case "progress_repairs_total":
		m.progressRepairs.WithLabelValues(labels...).Inc()
	case "scheduler_job_runs_total":
		m.jobRuns.WithLabelValues(labels...).Inc()
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	m.logger.Debug("метрика увеличена", zap.String("metric", name), zap.Strings("labels", labels))
}

// SetGauge устанавливает значение gauge метрики
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var gauge prometheus.Gauge

	switch name {
	case "hearts":
		gauge = m.hearts
	case "streak":
		gauge = m.streak
	default:
		m.logger.Error("неизвестная gauge метрика", zap.String("name", name))
		return
	}

	gauge.Set(value)
}

// ObserveHistogram добавляет наблюдение в гистограмму
func (m *Metrics) ObserveHistogram(name string, value float64, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "word_pool_size":
		m.poolSize.WithLabelValues(labels...).Observe(value)
	case "xp_per_action":
		m.xpPerAction.Observe(value)
	case "scheduler_job_duration_seconds":
		m.jobDuration.WithLabelValues(labels...).Observe(value)
	default:
		m.logger.Error("неизвестная гистограмма", zap.String("name", name))
	}
}

// RecordAnswer записывает ответ
func (m *Metrics) RecordAnswer(mode string, correct bool) {
	result := "correct"
	if !correct {
		result = "wrong"
	}
	m.IncrementCounter("answers_total", mode, result)
}

// RecordXP записывает заработанный опыт
func (m *Metrics) RecordXP(amount int64, source string) {
	m.IncrementCounter("xp_earned_total", source)
	m.ObserveHistogram("xp_per_action", float64(amount))
}

// RecordLevelUp записывает повышение уровня
func (m *Metrics) RecordLevelUp() {
	m.IncrementCounter("level_ups_total")
}

// RecordLeaguePromotion записывает переход в лигу
func (m *Metrics) RecordLeaguePromotion(league string) {
	m.IncrementCounter("league_promotions_total", league)
}

// RecordChapterCompleted записывает завершение главы
func (m *Metrics) RecordChapterCompleted() {
	m.IncrementCounter("chapter_completions_total")
}

// RecordPersistenceError записывает неудачное сохранение
func (m *Metrics) RecordPersistenceError() {
	m.IncrementCounter("persistence_errors_total")
}

// RecordProgressRepair записывает итог загрузки прогресса
func (m *Metrics) RecordProgressRepair(outcome string) {
	m.IncrementCounter("progress_repairs_total", outcome)
}

// RecordPoolSize записывает размер пула слов
func (m *Metrics) RecordPoolSize(mode string, size int) {
	m.ObserveHistogram("word_pool_size", float64(size), mode)
}

// RecordState записывает текущие сердца и серию
func (m *Metrics) RecordState(hearts, streak int) {
	m.SetGauge("hearts", float64(hearts))
	m.SetGauge("streak", float64(streak))
}

// RecordJob записывает запуск фоновой задачи
func (m *Metrics) RecordJob(name string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.IncrementCounter("scheduler_job_runs_total", name, result)
	m.ObserveHistogram("scheduler_job_duration_seconds", duration.Seconds(), name)
}

// Registry реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
