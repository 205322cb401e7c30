package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kelime/internal/clock"
	"kelime/internal/session"
	"kelime/pkg/models"
)

// Learner доступ к сессии ученика из фоновых задач
type Learner interface {
	RefillHearts(ctx context.Context) (int, *session.Update)
	ExpireChallenges(ctx context.Context) *session.Update
	Snapshot() session.Snapshot
}

// Notifier доставляет уведомления пользователю
type Notifier interface {
	Notify(ctx context.Context, notices []models.Notice) error
}

// HeartsRefillJob восстанавливает сердца по таймеру и сообщает об этом
type HeartsRefillJob struct {
	learner  Learner
	notifier Notifier
	logger   *zap.Logger
}

// NewHeartsRefillJob создает задачу восстановления сердец
func NewHeartsRefillJob(learner Learner, notifier Notifier, logger *zap.Logger) *HeartsRefillJob {
	return &HeartsRefillJob{
		learner:  learner,
		notifier: notifier,
		logger:   logger,
	}
}

// Name имя задачи для логов
func (j *HeartsRefillJob) Name() string {
	return "hearts_refill"
}

// Run начисляет сердца за прошедшие интервалы
func (j *HeartsRefillJob) Run(ctx context.Context) error {
	added, update := j.learner.RefillHearts(ctx)
	if added == 0 {
		return nil
	}

	j.logger.Info("сердца восстановлены по таймеру", zap.Int("added", added))

	if !j.learner.Snapshot().Notifications || len(update.Notices) == 0 {
		return nil
	}
	if err := j.notifier.Notify(ctx, update.Notices); err != nil {
		return fmt.Errorf("ошибка отправки уведомления о сердцах: %w", err)
	}
	return nil
}

// ChallengeTimerJob закрывает задачи на время после истечения срока
type ChallengeTimerJob struct {
	learner  Learner
	notifier Notifier
	logger   *zap.Logger
}

// NewChallengeTimerJob создает задачу проверки сроков
func NewChallengeTimerJob(learner Learner, notifier Notifier, logger *zap.Logger) *ChallengeTimerJob {
	return &ChallengeTimerJob{
		learner:  learner,
		notifier: notifier,
		logger:   logger,
	}
}

// Name имя задачи для логов
func (j *ChallengeTimerJob) Name() string {
	return "challenge_timer"
}

// Run сообщает о проваленных по времени задачах независимо от настройки уведомлений
func (j *ChallengeTimerJob) Run(ctx context.Context) error {
	update := j.learner.ExpireChallenges(ctx)
	if update == nil {
		return nil
	}

	j.logger.Info("задачи закрыты по времени", zap.Int("events", len(update.Events)))

	if len(update.Notices) == 0 {
		return nil
	}
	if err := j.notifier.Notify(ctx, update.Notices); err != nil {
		return fmt.Errorf("ошибка отправки уведомления о задаче: %w", err)
	}
	return nil
}

// reminderHour с этого часа напоминаем о серии, если сегодня занятий не было
const reminderHour = 20

// StreakReminderJob напоминает о серии, если сегодня еще не было занятий
type StreakReminderJob struct {
	learner  Learner
	notifier Notifier
	clock    clock.Clock
	lastSent string
	logger   *zap.Logger
}

// NewStreakReminderJob создает задачу напоминания о серии
func NewStreakReminderJob(learner Learner, notifier Notifier, clk clock.Clock, logger *zap.Logger) *StreakReminderJob {
	return &StreakReminderJob{
		learner:  learner,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// Name имя задачи для логов
func (j *StreakReminderJob) Name() string {
	return "streak_reminder"
}

// Run отправляет не больше одного напоминания в день
func (j *StreakReminderJob) Run(ctx context.Context) error {
	snap := j.learner.Snapshot()
	if !snap.Notifications || snap.Streak == 0 || snap.LastStudyDate == "" {
		return nil
	}

	now := j.clock.Now()
	today := models.FormatDate(now)
	if j.lastSent == today || snap.LastStudyDate == today || now.Hour() < reminderHour {
		return nil
	}

	notice := models.Notice{
		Message:  "🔥 Streak'inizi korumak için bugün çalışmayı unutmayın!",
		Severity: models.SeverityInfo,
	}
	if err := j.notifier.Notify(ctx, []models.Notice{notice}); err != nil {
		return fmt.Errorf("ошибка отправки напоминания о серии: %w", err)
	}

	j.lastSent = today
	j.logger.Info("напоминание о серии отправлено",
		zap.Int("streak", snap.Streak),
		zap.String("last_study", snap.LastStudyDate))
	return nil
}
