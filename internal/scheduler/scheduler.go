package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler управляет запуском периодических задач
type Scheduler struct {
	logger   *zap.Logger
	jobs     []Job
	recorder Recorder
}

// Recorder принимает длительность и результат каждого запуска
type Recorder interface {
	RecordJob(name string, duration time.Duration, err error)
}

// Job интерфейс для периодических задач
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// NewScheduler создает новый планировщик задач
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		jobs:   make([]Job, 0),
	}
}

// WithRecorder подключает запись метрик задач
func (s *Scheduler) WithRecorder(recorder Recorder) *Scheduler {
	s.recorder = recorder
	return s
}

// AddJob добавляет задачу в планировщик
func (s *Scheduler) AddJob(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start запускает планировщик с указанным интервалом и блокируется до отмены контекста
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("запуск планировщика задач",
		zap.Duration("interval", interval),
		zap.Int("jobs_count", len(s.jobs)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Запускаем задачи сразу при старте
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("остановка планировщика задач")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce запускает все зарегистрированные задачи по одному разу.
// Ошибка задачи логируется и не мешает остальным.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		err := job.Run(ctx)
		elapsed := time.Since(started)

		if s.recorder != nil {
			s.recorder.RecordJob(job.Name(), elapsed, err)
		}
		if err != nil {
			s.logger.Error("ошибка выполнения задачи",
				zap.Error(err),
				zap.String("job", job.Name()),
				zap.Duration("elapsed", elapsed))
			continue
		}
		s.logger.Debug("задача выполнена", zap.String("job", job.Name()), zap.Duration("elapsed", elapsed))
	}
}
