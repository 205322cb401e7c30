package mastery

import (
	"sort"
	"time"

	"kelime/internal/catalog"
	"kelime/pkg/models"
)

// DefaultAverageDifficulty средняя сложность, пока нет ответов
const DefaultAverageDifficulty = 8.0

// AverageDifficulty средняя сложность всех отвеченных слов.
// Слова, которых нет в каталоге, считаются со сложностью по умолчанию.
func AverageDifficulty(p *models.UserProgress, cat *catalog.Catalog, def float64) float64 {
	if def <= 0 {
		def = DefaultAverageDifficulty
	}
	if len(p.Words) == 0 {
		return def
	}

	total := 0.0
	for id := range p.Words {
		if d, ok := cat.Difficulty(id); ok {
			total += d
		} else {
			total += def
		}
	}
	return total / float64(len(p.Words))
}

// WeakWords слабые слова в порядке добавления, устаревшие идентификаторы пропускаются
func WeakWords(p *models.UserProgress, cat *catalog.Catalog) []*models.Word {
	return cat.Resolve(p.WeakWords)
}

// ErrorItem слово из анализа ошибок
type ErrorItem struct {
	Word        *models.Word
	Count       int
	LastErrorAt *time.Time
}

// ErrorGroup ошибки одной категории
type ErrorGroup struct {
	Category models.ErrorCategory
	Items    []ErrorItem
}

// ErrorReport самые частые ошибки, сгруппированные по категориям
func ErrorReport(p *models.UserProgress, cat *catalog.Catalog, limit int) []ErrorGroup {
	items := make([]ErrorItem, 0, len(p.ErrorAnalysis))
	categories := make(map[int64]models.ErrorCategory, len(p.ErrorAnalysis))
	for id, entry := range p.ErrorAnalysis {
		w, ok := cat.ByID(id)
		if !ok || entry == nil {
			continue
		}
		items = append(items, ErrorItem{Word: w, Count: entry.Count, LastErrorAt: entry.LastErrorAt})
		categories[id] = entry.Category
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Word.ID < items[j].Word.ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	order := []models.ErrorCategory{models.ErrorCategoryEasy, models.ErrorCategoryMedium, models.ErrorCategoryHard}
	groups := make([]ErrorGroup, 0, len(order))
	for _, category := range order {
		group := ErrorGroup{Category: category}
		for _, item := range items {
			if categories[item.Word.ID] == category {
				group.Items = append(group.Items, item)
			}
		}
		if len(group.Items) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

// DueCount количество изученных слов, которые пора повторить
func DueCount(p *models.UserProgress, cat *catalog.Catalog, now time.Time) int {
	due := 0
	for id, wp := range p.Words {
		if _, ok := cat.ByID(id); !ok || wp == nil {
			continue
		}
		if wp.IsDue(now) {
			due++
		}
	}
	return due
}

// StudiedOn количество слов, изученных в календарный день now
func StudiedOn(p *models.UserProgress, now time.Time) int {
	day := models.FormatDate(now)
	count := 0
	for _, wp := range p.Words {
		if wp == nil || wp.LastStudiedAt == nil {
			continue
		}
		if models.FormatDate(wp.LastStudiedAt.In(now.Location())) == day {
			count++
		}
	}
	return count
}
