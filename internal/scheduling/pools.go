package scheduling

import (
	"time"

	"kelime/internal/catalog"
	"kelime/internal/config"
	"kelime/pkg/models"
)

// SpacedRepetitionPool новые слова и слова, которые пора повторить
func SpacedRepetitionPool(words []*models.Word, p *models.UserProgress, now time.Time) []*models.Word {
	pool := make([]*models.Word, 0, len(words))
	for _, w := range words {
		wp, ok := p.Words[w.ID]
		if !ok || wp == nil || wp.IsDue(now) {
			pool = append(pool, w)
		}
	}
	return pool
}

// WeakWordPool слабые слова в порядке добавления
func WeakWordPool(cat *catalog.Catalog, p *models.UserProgress) []*models.Word {
	return cat.Resolve(p.WeakWords)
}

// PracticePool слова, начатые, но еще не закрепленные
func PracticePool(words []*models.Word, p *models.UserProgress, maxCorrect int) []*models.Word {
	pool := make([]*models.Word, 0)
	for _, w := range words {
		wp, ok := p.Words[w.ID]
		if ok && wp != nil && wp.CorrectCount > 0 && wp.CorrectCount < maxCorrect {
			pool = append(pool, w)
		}
	}
	return pool
}

// InterleavedPool чередует слова трех диапазонов сложности по кругу
func InterleavedPool(words []*models.Word, limit int) []*models.Word {
	var easy, medium, hard []*models.Word
	for _, w := range words {
		switch models.DifficultyCategory(w.Difficulty) {
		case models.ErrorCategoryEasy:
			easy = append(easy, w)
		case models.ErrorCategoryMedium:
			medium = append(medium, w)
		default:
			hard = append(hard, w)
		}
	}

	longest := max(len(easy), len(medium), len(hard))
	mixed := make([]*models.Word, 0, len(words))
	for i := 0; i < longest; i++ {
		for _, band := range [][]*models.Word{easy, medium, hard} {
			if i < len(band) {
				mixed = append(mixed, band[i])
			}
		}
	}

	if limit > 0 && len(mixed) > limit {
		mixed = mixed[:limit]
	}
	return mixed
}

// ContextualPool слова с примером употребления, иначе весь каталог
func ContextualPool(cat *catalog.Catalog) []*models.Word {
	if pool := cat.WithContext(); len(pool) > 0 {
		return pool
	}
	return cat.All()
}

// ChapterPool невыученные слова главы
func ChapterPool(chapter *models.Chapter, p *models.UserProgress) []*models.Word {
	var learned *models.ChapterProgress
	if p != nil {
		learned = p.Chapters[chapter.ID]
	}

	pool := make([]*models.Word, 0, len(chapter.Words))
	for _, w := range chapter.Words {
		if learned != nil && learned.HasLearned(w.ID) {
			continue
		}
		pool = append(pool, w)
	}
	return pool
}

// TargetDifficulty целевая сложность по уровню и средней сложности ответов
func TargetDifficulty(level int, average float64, rules config.AdaptationRules) float64 {
	base := float64(level * 2)

	var target float64
	switch {
	case average < rules.EasyAverage:
		target = min(base, rules.MaxTarget)
	case average > rules.HardAverage:
		target = max(base-2, rules.MinTarget)
	default:
		target = base
	}

	return min(max(target, rules.MinTarget), rules.MaxTarget)
}

// AdaptDifficulty оставляет слова в окне вокруг целевой сложности
func AdaptDifficulty(pool []*models.Word, target, window float64) []*models.Word {
	filtered := make([]*models.Word, 0, len(pool))
	for _, w := range pool {
		diff := w.Difficulty - target
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
