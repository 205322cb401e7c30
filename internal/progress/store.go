package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/internal/store"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

// ErrPersistence прогресс не удалось сохранить даже после очистки офлайн уроков
var ErrPersistence = errors.New("ошибка сохранения прогресса")

const (
	DefaultKey           = "learningProgress"
	DefaultOfflinePrefix = "offline_"
	offlineChapterPrefix = "chapter_"
)

// Options ключи хранения прогресса
type Options struct {
	Key           string
	OfflinePrefix string
}

// Store загружает, восстанавливает и сохраняет прогресс пользователя
type Store struct {
	storage       store.Storage
	clock         clock.Clock
	rules         config.Rules
	key           string
	offlinePrefix string
	logger        *zap.Logger
}

// NewStore создает хранилище прогресса
func NewStore(storage store.Storage, clk clock.Clock, rules config.Rules, opts Options, logger *zap.Logger) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.OfflinePrefix == "" {
		opts.OfflinePrefix = DefaultOfflinePrefix
	}
	return &Store{
		storage:       storage,
		clock:         clk,
		rules:         rules,
		key:           opts.Key,
		offlinePrefix: opts.OfflinePrefix,
		logger:        logger,
	}
}

// Default возвращает канонический пустой прогресс
func (s *Store) Default() *models.UserProgress {
	return models.NewUserProgress(s.rules.DailyGoal, s.rules.MaxHearts)
}

// Load загружает прогресс, никогда не возвращая ошибку
func (s *Store) Load(ctx context.Context) *models.UserProgress {
	p, _ := s.LoadReport(ctx)
	return p
}

// LoadReport загружает прогресс, логирует исправления и возвращает отчет
func (s *Store) LoadReport(ctx context.Context) (*models.UserProgress, *Report) {
	p, report := s.Inspect(ctx)

	switch report.Outcome {
	case OutcomeMalformed, OutcomeUnreadable:
		s.logger.Warn("сохраненный прогресс не прочитан, используется пустой", zap.String("outcome", string(report.Outcome)))
	case OutcomeWiped:
		s.logger.Info("сохраненный прогресс без реальной активности отброшен")
	}
	for _, r := range report.Repairs {
		s.logger.Warn("исправлено поле прогресса", zap.String("field", r.Field), zap.String("reason", r.Reason))
	}

	return p, report
}

// Inspect загружает прогресс и возвращает отчет об исправлениях
func (s *Store) Inspect(ctx context.Context) (*models.UserProgress, *Report) {
	report := &Report{}

	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, store.ErrNotFound) {
		report.Outcome = OutcomeFresh
		return s.Default(), report
	}
	if err != nil {
		s.logger.Error("ошибка чтения прогресса", zap.Error(err))
		report.Outcome = OutcomeUnreadable
		return s.Default(), report
	}

	return s.Decode(data)
}

// Decode разбирает сохраненный документ с проверкой и восстановлением полей
func (s *Store) Decode(data []byte) (*models.UserProgress, *Report) {
	report := &Report{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		report.Outcome = OutcomeMalformed
		return s.Default(), report
	}

	d := &decoder{fields: fields, report: report}

	xp := d.counter("xp", models.MaxXP)
	words := d.words(s.rules)
	dailyProgress := d.counter("dailyProgress", maxInt32)

	if xp == 0 && len(words) == 0 && dailyProgress == 0 {
		report.Outcome = OutcomeWiped
		report.Repairs = nil
		return s.Default(), report
	}
	report.Outcome = OutcomeRestored

	p := s.Default()
	p.XP = xp
	p.Words = words
	p.DailyProgress = int(dailyProgress)
	p.DailyProgressDate = d.date("dailyProgressDate")
	p.Streak = int(d.counter("streak", maxInt32))
	p.LastStudyDate = d.date("lastStudyDate")

	if goal := d.counter("dailyGoal", maxInt32); goal > 0 {
		p.DailyGoal = int(goal)
	}
	if maxHearts := d.counter("maxHearts", maxInt32); maxHearts > 0 {
		p.MaxHearts = int(maxHearts)
	}
	p.Hearts = p.MaxHearts
	if hearts, ok := d.number("hearts"); ok {
		p.Hearts = int(clampCounter(report, "hearts", hearts, int64(p.MaxHearts)))
	}
	if raw, ok := d.raw("heartsRefillTime"); ok {
		refillAt, err := models.ParseTimestamp(raw)
		if err != nil {
			report.add("heartsRefillTime", "некорректное время отброшено: %v", err)
		}
		p.HeartsRefillTime = refillAt
	}
	p.IsPremium = d.boolean("isPremium", false)
	p.Gems = int(d.counter("gems", maxInt32))

	p.LeagueXP = d.counter("leagueXP", models.MaxXP)
	p.League = s.restoreLeague(d, xp)

	p.WeakWords = d.ids("weakWords")
	p.Badges = d.stringList("badges")
	p.Chapters = d.chapters()
	if xp == 0 && len(words) == 0 {
		resetChapters(report, p.Chapters)
	}
	p.ErrorAnalysis = d.errorAnalysis()
	p.SkillTree = d.skillTree()
	p.OfflineLessons = d.offlineLessons()
	p.LastChestDate = d.date("lastChestDate")
	p.LastGiftDate = d.date("lastGiftDate")
	p.DarkMode = d.boolean("darkMode", false)
	p.Notifications = d.boolean("notifications", true)
	p.Challenges = d.challenges()
	p.Stories = d.stories()

	return p, report
}

const maxInt32 = 1<<31 - 1

// resetChapters обнуляет главы записи без опыта и слов
func resetChapters(report *Report, chapters map[int]*models.ChapterProgress) {
	for id, cp := range chapters {
		if cp.Completed == 0 && cp.Total == 0 && len(cp.LearnedWords) == 0 && !cp.Rewarded {
			continue
		}
		report.add("chapters", "глава %d сброшена: нет опыта и выученных слов", id)
		chapters[id] = &models.ChapterProgress{LearnedWords: []int64{}}
	}
}

// restoreLeague лига есть только при наличии опыта
func (s *Store) restoreLeague(d *decoder, xp int64) models.League {
	var league string
	d.decode("league", &league)

	if xp == 0 {
		if league != "" {
			d.report.add("league", "лига %q без опыта сброшена", league)
		}
		return models.LeagueNone
	}
	if !models.IsValidLeague(league) {
		if league != "" {
			d.report.add("league", "неизвестная лига %q заменена на bronze", league)
		}
		return models.LeagueBronze
	}
	return models.League(league)
}

// Save сохраняет прогресс, при переполнении очищает офлайн уроки и повторяет попытку
func (s *Store) Save(ctx context.Context, p *models.UserProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: ошибка сериализации: %v", ErrPersistence, err)
	}

	err = s.storage.Set(ctx, s.key, data)
	if err == nil {
		return nil
	}
	if !store.IsQuotaExceeded(err) {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Warn("хранилище переполнено, очищаем офлайн уроки", zap.Error(err))

	purged, purgeErr := s.ClearOfflineLessons(ctx)
	if purgeErr != nil {
		s.logger.Error("ошибка очистки офлайн уроков", zap.Error(purgeErr))
	}
	if len(p.OfflineLessons) > 0 {
		p.OfflineLessons = []int{}
		if data, err = json.Marshal(p); err != nil {
			return fmt.Errorf("%w: ошибка сериализации: %v", ErrPersistence, err)
		}
	}

	if err := s.storage.Set(ctx, s.key, data); err != nil {
		s.logger.Error("прогресс не сохранен после очистки", zap.Int("purged", purged), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("прогресс сохранен после очистки офлайн уроков", zap.Int("purged", purged))
	return nil
}

// Reset удаляет прогресс и все офлайн уроки и возвращает пустой прогресс
func (s *Store) Reset(ctx context.Context) (*models.UserProgress, error) {
	var errs []error
	if err := s.storage.Delete(ctx, s.key); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.ClearOfflineLessons(ctx); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info("прогресс сброшен")

	if len(errs) > 0 {
		return s.Default(), fmt.Errorf("%w: %v", ErrPersistence, errors.Join(errs...))
	}
	return s.Default(), nil
}

// offlineKey ключ скачанной главы
func (s *Store) offlineKey(chapterID int) string {
	return s.offlinePrefix + offlineChapterPrefix + strconv.Itoa(chapterID)
}

// SaveOfflineLesson сохраняет слова главы для офлайн режима
func (s *Store) SaveOfflineLesson(ctx context.Context, chapter *models.Chapter) (*models.OfflineLesson, error) {
	lesson := &models.OfflineLesson{
		ChapterID:    chapter.ID,
		Words:        chapter.Words,
		DownloadedAt: s.clock.Now(),
	}

	data, err := json.Marshal(lesson)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации офлайн урока: %w", err)
	}
	if err := s.storage.Set(ctx, s.offlineKey(chapter.ID), data); err != nil {
		return nil, fmt.Errorf("%w: офлайн урок %d: %v", ErrPersistence, chapter.ID, err)
	}

	s.logger.Info("глава сохранена для офлайн режима",
		zap.Int("chapter_id", chapter.ID),
		zap.Int("words", len(chapter.Words)))

	return lesson, nil
}

// LoadOfflineLesson загружает скачанную главу
func (s *Store) LoadOfflineLesson(ctx context.Context, chapterID int) (*models.OfflineLesson, error) {
	data, err := s.storage.Get(ctx, s.offlineKey(chapterID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения офлайн урока %d: %w", chapterID, err)
	}

	var lesson models.OfflineLesson
	if err := json.Unmarshal(data, &lesson); err != nil {
		return nil, fmt.Errorf("ошибка разбора офлайн урока %d: %w", chapterID, err)
	}
	return &lesson, nil
}

// RemoveOfflineLesson удаляет скачанную главу
func (s *Store) RemoveOfflineLesson(ctx context.Context, chapterID int) error {
	if err := s.storage.Delete(ctx, s.offlineKey(chapterID)); err != nil {
		return fmt.Errorf("ошибка удаления офлайн урока %d: %w", chapterID, err)
	}
	return nil
}

// ClearOfflineLessons удаляет все ключи офлайн пространства имен
func (s *Store) ClearOfflineLessons(ctx context.Context) (int, error) {
	keys, err := s.storage.Keys(ctx, s.offlinePrefix)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения офлайн ключей: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// OfflineWords собирает слова всех скачанных глав
func (s *Store) OfflineWords(ctx context.Context) ([]*models.Word, error) {
	keys, err := s.storage.Keys(ctx, s.offlinePrefix+offlineChapterPrefix)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения офлайн ключей: %w", err)
	}

	seen := make(map[int64]struct{})
	words := make([]*models.Word, 0)
	for _, key := range keys {
		data, err := s.storage.Get(ctx, key)
		if err != nil {
			s.logger.Warn("офлайн урок не прочитан", zap.String("key", key), zap.Error(err))
			continue
		}
		var lesson models.OfflineLesson
		if err := json.Unmarshal(data, &lesson); err != nil {
			s.logger.Warn("офлайн урок поврежден", zap.String("key", key), zap.Error(err))
			continue
		}
		for _, w := range lesson.Words {
			if w == nil {
				continue
			}
			if _, dup := seen[w.ID]; dup {
				continue
			}
			seen[w.ID] = struct{}{}
			words = append(words, w)
		}
	}

	sort.Slice(words, func(i, j int) bool { return words[i].ID < words[j].ID })
	return words, nil
}
