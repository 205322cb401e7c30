package catalog

import (
	"errors"
	"math"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

// ErrDataLoad каталог не удалось загрузить из источника
var ErrDataLoad = errors.New("ошибка загрузки каталога слов")

// Catalog неизменяемый список слов сессии
type Catalog struct {
	words []*models.Word
	byID  map[int64]*models.Word
}

// New создает каталог, отбрасывая некорректные записи
func New(words []*models.Word, logger *zap.Logger) *Catalog {
	c := &Catalog{
		words: make([]*models.Word, 0, len(words)),
		byID:  make(map[int64]*models.Word, len(words)),
	}

	dropped := 0
	for _, w := range words {
		if reason := invalidReason(w); reason != "" {
			dropped++
			if w != nil {
				logger.Warn("слово отброшено", zap.Int64("word_id", w.ID), zap.String("reason", reason))
			}
			continue
		}
		if _, dup := c.byID[w.ID]; dup {
			dropped++
			logger.Warn("дубликат слова отброшен", zap.Int64("word_id", w.ID))
			continue
		}
		c.byID[w.ID] = w
		c.words = append(c.words, w)
	}

	if dropped > 0 {
		logger.Info("каталог собран с пропусками", zap.Int("words", len(c.words)), zap.Int("dropped", dropped))
	}
	return c
}

func invalidReason(w *models.Word) string {
	switch {
	case w == nil:
		return "пустая запись"
	case w.ID <= 0:
		return "идентификатор должен быть положительным"
	case w.ArabicForm == "":
		return "нет арабской формы"
	case w.Meaning == "":
		return "нет значения"
	case math.IsNaN(w.Difficulty) || math.IsInf(w.Difficulty, 0):
		return "некорректная сложность"
	}
	return ""
}

// All возвращает все слова в порядке каталога
func (c *Catalog) All() []*models.Word {
	out := make([]*models.Word, len(c.words))
	copy(out, c.words)
	return out
}

// Len количество слов
func (c *Catalog) Len() int {
	return len(c.words)
}

// Empty проверяет, пуст ли каталог
func (c *Catalog) Empty() bool {
	return len(c.words) == 0
}

// ByID ищет слово по идентификатору
func (c *Catalog) ByID(id int64) (*models.Word, bool) {
	w, ok := c.byID[id]
	return w, ok
}

// Difficulty возвращает сложность слова
func (c *Catalog) Difficulty(id int64) (float64, bool) {
	w, ok := c.byID[id]
	if !ok {
		return 0, false
	}
	return w.Difficulty, true
}

// WithContext возвращает слова с примером употребления
func (c *Catalog) WithContext() []*models.Word {
	out := make([]*models.Word, 0)
	for _, w := range c.words {
		if w.HasContext() {
			out = append(out, w)
		}
	}
	return out
}

// Resolve превращает идентификаторы в слова, пропуская неизвестные
func (c *Catalog) Resolve(ids []int64) []*models.Word {
	out := make([]*models.Word, 0, len(ids))
	for _, id := range ids {
		if w, ok := c.byID[id]; ok {
			out = append(out, w)
		}
	}
	return out
}
