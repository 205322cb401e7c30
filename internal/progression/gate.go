package progression

import (
	"context"
	"errors"
	"fmt"

	"kelime/internal/config"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

var (
	ErrChapterNotFound   = errors.New("глава не найдена")
	ErrChapterLocked     = errors.New("предыдущая глава не завершена")
	ErrChapterIncomplete = errors.New("глава еще не пройдена")
	ErrAlreadyRewarded   = errors.New("награда за главу уже выдана")
)

// Saver сохраняет прогресс после изменения
type Saver interface {
	Save(ctx context.Context, p *models.UserProgress) error
}

// ChapterStatus глава со своим состоянием для списка глав
type ChapterStatus struct {
	Chapter *models.Chapter
	State   models.ChapterState
	Learned int
	Total   int
}

// Completion итог завершения главы
type Completion struct {
	Chapter *models.Chapter
	XP      int64
	Gems    int
}

// Gate правила доступа к главам, тестам и навыкам
type Gate struct {
	chapters []*models.Chapter
	words    wordSource
	saver    Saver
	rnd      shuffler
	rules    config.Rules
	logger   *zap.Logger
}

// NewGate создает гейт прогрессии
func NewGate(chapters []*models.Chapter, words wordSource, saver Saver, rnd shuffler, rules config.Rules, logger *zap.Logger) *Gate {
	return &Gate{
		chapters: chapters,
		words:    words,
		saver:    saver,
		rnd:      rnd,
		rules:    rules,
		logger:   logger,
	}
}

// Chapters список глав
func (g *Gate) Chapters() []*models.Chapter {
	return g.chapters
}

// Chapter ищет главу по идентификатору
func (g *Gate) Chapter(id int) (*models.Chapter, error) {
	for _, ch := range g.chapters {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrChapterNotFound, id)
}

// IsUnlocked первая глава открыта всегда, остальные после полного прохождения предыдущей
func (g *Gate) IsUnlocked(p *models.UserProgress, id int) bool {
	if id <= 1 {
		return true
	}
	prev, err := g.Chapter(id - 1)
	if err != nil || len(prev.Words) == 0 {
		return false
	}
	cp := p.Chapters[prev.ID]
	if cp == nil {
		return false
	}
	return cp.ValidLearned(prev.WordSet()) >= len(prev.Words)
}

// IsComplete глава пройдена: все слова выучены и есть опыт или прогресс слов.
// Один счетчик дневной цели главу не завершает.
func (g *Gate) IsComplete(p *models.UserProgress, ch *models.Chapter) bool {
	cp := p.Chapters[ch.ID]
	if cp == nil || len(ch.Words) == 0 || len(cp.LearnedWords) == 0 {
		return false
	}
	if !p.HasActivity() {
		return false
	}
	return cp.ValidLearned(ch.WordSet()) >= len(ch.Words)
}

// State состояние главы
func (g *Gate) State(p *models.UserProgress, id int) (models.ChapterState, error) {
	ch, err := g.Chapter(id)
	if err != nil {
		return "", err
	}
	return g.state(p, ch), nil
}

func (g *Gate) state(p *models.UserProgress, ch *models.Chapter) models.ChapterState {
	switch {
	case !g.IsUnlocked(p, ch.ID):
		return models.ChapterLocked
	case g.IsComplete(p, ch):
		return models.ChapterCompleted
	case p.Chapters[ch.ID] != nil:
		return models.ChapterInProgress
	default:
		return models.ChapterUnlockable
	}
}

// States состояния всех глав по порядку
func (g *Gate) States(p *models.UserProgress) []ChapterStatus {
	statuses := make([]ChapterStatus, 0, len(g.chapters))
	for _, ch := range g.chapters {
		learned := 0
		if cp := p.Chapters[ch.ID]; cp != nil {
			learned = cp.ValidLearned(ch.WordSet())
		}
		statuses = append(statuses, ChapterStatus{
			Chapter: ch,
			State:   g.state(p, ch),
			Learned: learned,
			Total:   len(ch.Words),
		})
	}
	return statuses
}

// StartChapter проверяет доступ к главе и заводит ее прогресс
func (g *Gate) StartChapter(ctx context.Context, p *models.UserProgress, id int) (*models.Chapter, error) {
	ch, err := g.Chapter(id)
	if err != nil {
		return nil, err
	}
	if len(ch.Words) == 0 {
		return nil, fmt.Errorf("%w: глава %d пуста", ErrChapterNotFound, id)
	}
	if !g.IsUnlocked(p, id) {
		return nil, fmt.Errorf("%w: глава %d", ErrChapterLocked, id)
	}

	if p.Chapters[id] != nil {
		return ch, nil
	}
	p.Chapters[id] = &models.ChapterProgress{Total: len(ch.Words), LearnedWords: []int64{}}
	if err := g.saver.Save(ctx, p); err != nil {
		return ch, fmt.Errorf("ошибка сохранения прогресса главы: %w", err)
	}
	g.logger.Info("глава начата", zap.Int("chapter_id", id), zap.Int("total", len(ch.Words)))
	return ch, nil
}

// RecordCorrect отмечает слово выученным в главе. completed всегда пересчитывается
// из пересечения выученных слов с составом главы.
func (g *Gate) RecordCorrect(ctx context.Context, p *models.UserProgress, chapterID int, wordID int64) (bool, error) {
	ch, err := g.Chapter(chapterID)
	if err != nil {
		return false, err
	}
	set := ch.WordSet()
	if _, ok := set[wordID]; !ok {
		g.logger.Warn("слово не принадлежит главе",
			zap.Int("chapter_id", chapterID),
			zap.Int64("word_id", wordID))
		return false, nil
	}

	cp := p.Chapters[chapterID]
	if cp == nil {
		cp = &models.ChapterProgress{LearnedWords: []int64{}}
		p.Chapters[chapterID] = cp
	}
	added := cp.AddLearned(wordID)
	cp.Recount(set)
	if !added {
		return false, nil
	}
	if err := g.saver.Save(ctx, p); err != nil {
		return true, fmt.Errorf("ошибка сохранения прогресса главы: %w", err)
	}
	return true, nil
}

// SyncChapters пересчитывает сохраненные главы по текущему составу каталога
func (g *Gate) SyncChapters(p *models.UserProgress) bool {
	changed := false
	for _, ch := range g.chapters {
		cp := p.Chapters[ch.ID]
		if cp == nil {
			continue
		}
		completed, total := cp.Completed, cp.Total
		cp.Recount(ch.WordSet())
		if cp.Completed != completed || cp.Total != total {
			g.logger.Warn("прогресс главы пересчитан",
				zap.Int("chapter_id", ch.ID),
				zap.Int("completed_was", completed),
				zap.Int("completed", cp.Completed),
				zap.Int("total", cp.Total))
			changed = true
		}
	}
	return changed
}

// Complete проверяет завершение главы и выдает награду один раз.
// Опыт начисляет сессия, чтобы сработали уровни и лиги.
func (g *Gate) Complete(ctx context.Context, p *models.UserProgress, chapterID int) (*Completion, error) {
	ch, err := g.Chapter(chapterID)
	if err != nil {
		return nil, err
	}
	if !g.IsComplete(p, ch) {
		return nil, fmt.Errorf("%w: глава %d", ErrChapterIncomplete, chapterID)
	}

	set := ch.WordSet()
	cp := p.Chapters[chapterID]
	valid := make([]int64, 0, len(cp.LearnedWords))
	for _, id := range cp.LearnedWords {
		if _, ok := set[id]; ok {
			valid = append(valid, id)
		}
	}
	cp.LearnedWords = valid
	cp.Recount(set)
	if cp.Rewarded {
		return nil, fmt.Errorf("%w: глава %d", ErrAlreadyRewarded, chapterID)
	}
	cp.Rewarded = true

	completion := &Completion{
		Chapter: ch,
		XP:      g.rules.Chapters.CompletionXP,
		Gems:    g.rules.Chapters.CompletionGems,
	}
	p.Gems += completion.Gems

	g.logger.Info("глава завершена",
		zap.Int("chapter_id", chapterID),
		zap.Int64("xp", completion.XP),
		zap.Int("gems", completion.Gems))

	if err := g.saver.Save(ctx, p); err != nil {
		return completion, fmt.Errorf("ошибка сохранения завершения главы: %w", err)
	}
	return completion, nil
}
