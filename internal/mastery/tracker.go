package mastery

import (
	"context"
	"fmt"
	"math"
	"time"

	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

// Пороги правильных ответов для перехода между стадиями
const (
	RecallThreshold     = 3
	ProductionThreshold = 6
)

// Saver сохраняет прогресс после каждого изменения
type Saver interface {
	Save(ctx context.Context, p *models.UserProgress) error
}

// Options параметры применения ответа
type Options struct {
	// TrackWeakness учитывать ошибку в слабых словах и анализе ошибок
	TrackWeakness bool
}

// Result итог применения ответа к слову
type Result struct {
	WordID        int64
	Correct       bool
	FirstSeen     bool
	PreviousStage models.Stage
	Stage         models.Stage
	StageAdvanced bool
	MarkedWeak    bool
	Interval      time.Duration
	EaseFactor    float64
}

// Tracker обновляет прогресс слов по ответам
type Tracker struct {
	saver  Saver
	clock  clock.Clock
	rules  config.Rules
	logger *zap.Logger
}

// NewTracker создает трекер освоения слов
func NewTracker(saver Saver, clk clock.Clock, rules config.Rules, logger *zap.Logger) *Tracker {
	return &Tracker{
		saver:  saver,
		clock:  clk,
		rules:  rules,
		logger: logger,
	}
}

// Apply применяет ответ к прогрессу слова и сохраняет прогресс.
// Ошибка сохранения не отменяет изменения в памяти.
func (t *Tracker) Apply(ctx context.Context, p *models.UserProgress, word *models.Word, correct bool, opts Options) (*Result, error) {
	now := t.clock.Now()

	wp, seen := p.Words[word.ID]
	if !seen || wp == nil {
		wp = models.NewWordProgress(word.ID)
		p.Words[word.ID] = wp
	}

	result := &Result{
		WordID:        word.ID,
		Correct:       correct,
		FirstSeen:     !seen,
		PreviousStage: wp.Stage,
	}

	Update(wp, correct, now, t.rules.MaxInterval())
	p.LastStudyDate = models.FormatDate(now)

	if !correct && opts.TrackWeakness {
		result.MarkedWeak = p.AddWeakWord(word.ID)
		recordError(p, word, now)
	}

	result.Stage = wp.Stage
	result.StageAdvanced = wp.Stage.Rank() > result.PreviousStage.Rank()
	result.Interval = wp.Interval
	result.EaseFactor = wp.EaseFactor

	t.logger.Debug("ответ применен",
		zap.Int64("word_id", word.ID),
		zap.Bool("correct", correct),
		zap.String("stage", string(wp.Stage)),
		zap.Duration("interval", wp.Interval),
		zap.Float64("ease_factor", wp.EaseFactor))

	if err := t.saver.Save(ctx, p); err != nil {
		return result, fmt.Errorf("ошибка сохранения прогресса слова %d: %w", word.ID, err)
	}
	return result, nil
}

// Update меняет интервал, коэффициент легкости и стадию слова
func Update(wp *models.WordProgress, correct bool, now time.Time, maxInterval time.Duration) {
	reviewedAt := now
	studiedAt := now
	wp.LastReviewedAt = &reviewedAt
	wp.LastStudiedAt = &studiedAt

	if !correct {
		wp.WrongCount++
		wp.Interval = models.DefaultInterval
		wp.EaseFactor = math.Max(wp.EaseFactor-0.2, models.MinEaseFactor)
		return
	}

	wp.CorrectCount++

	grown := math.Floor(float64(wp.Interval.Milliseconds()) * wp.EaseFactor)
	if maxInterval > 0 && grown > float64(maxInterval.Milliseconds()) {
		grown = float64(maxInterval.Milliseconds())
	}
	if next := time.Duration(grown) * time.Millisecond; next > wp.Interval {
		wp.Interval = next
	}
	wp.EaseFactor = math.Min(wp.EaseFactor+0.1, models.MaxEaseFactor)

	// За один ответ стадия продвигается не более чем на шаг
	switch {
	case wp.Stage == models.StageRecognition && wp.CorrectCount >= RecallThreshold:
		wp.Stage = models.StageRecall
	case wp.Stage == models.StageRecall && wp.CorrectCount >= ProductionThreshold:
		wp.Stage = models.StageProduction
	}
}

// recordError увеличивает счетчик ошибок слова
func recordError(p *models.UserProgress, word *models.Word, now time.Time) {
	entry, ok := p.ErrorAnalysis[word.ID]
	if !ok || entry == nil {
		entry = &models.ErrorEntry{Category: models.DifficultyCategory(word.Difficulty)}
		p.ErrorAnalysis[word.ID] = entry
	}
	at := now
	entry.Count++
	entry.LastErrorAt = &at
}
