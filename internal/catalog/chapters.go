package catalog

import (
	"fmt"
	"sort"

	"kelime/internal/config"
	"kelime/pkg/models"
)

// ChapterName название главы по номеру
func ChapterName(id int) string {
	return fmt.Sprintf("Bölüm %d", id)
}

// BuildChapters делит каталог на главы по равным диапазонам сложности
func (c *Catalog) BuildChapters(rules config.ChapterRules) []*models.Chapter {
	if len(c.words) == 0 || rules.Count <= 0 {
		return []*models.Chapter{}
	}

	sorted := c.All()
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Difficulty < sorted[j].Difficulty })

	minD := sorted[0].Difficulty
	maxD := sorted[len(sorted)-1].Difficulty
	span := maxD - minD
	perChapter := (len(sorted) + rules.Count - 1) / rules.Count

	chapters := make([]*models.Chapter, 0, rules.Count)
	for i := 1; i <= rules.Count; i++ {
		lo := minD + float64(i-1)*span/float64(rules.Count)
		hi := minD + float64(i)*span/float64(rules.Count)
		last := i == rules.Count

		words := make([]*models.Word, 0)
		for _, w := range sorted {
			if w.Difficulty < lo {
				continue
			}
			if (last && w.Difficulty <= maxD) || (!last && w.Difficulty < hi) {
				words = append(words, w)
			}
		}

		// Пустые диапазоны первых глав заполняются равными срезами
		if len(words) == 0 && i <= rules.EvenFillFirst {
			start := (i - 1) * perChapter
			end := min(i*perChapter, len(sorted))
			if start < end {
				words = append(words, sorted[start:end]...)
			}
		}

		if len(words) > 0 {
			chapters = append(chapters, &models.Chapter{Difficulty: i, Words: words})
		}
	}

	if len(chapters) == 0 {
		n := rules.FallbackWords
		if n <= 0 || n > len(sorted) {
			n = len(sorted)
		}
		chapters = append(chapters, &models.Chapter{Difficulty: 1, Words: sorted[:n]})
	}

	for i, ch := range chapters {
		ch.ID = i + 1
		ch.Name = ChapterName(ch.ID)
	}
	return chapters
}

// ChapterByID ищет главу по идентификатору
func ChapterByID(chapters []*models.Chapter, id int) (*models.Chapter, bool) {
	for _, ch := range chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}
