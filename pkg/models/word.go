package models

// Word представляет словарную единицу каталога
type Word struct {
	ID              int64   `json:"id_number"`
	ArabicForm      string  `json:"arabic_word"`
	Meaning         string  `json:"turkish_mean"`
	Difficulty      float64 `json:"word_diffuculty"`
	ExampleText     string  `json:"ayah_text,omitempty"`
	Translation     string  `json:"meal,omitempty"`
	ExampleAudioRef string  `json:"ayah_sound_url,omitempty"`
	AudioRef        string  `json:"sound_url,omitempty"`
}

// WordContext пример употребления слова
type WordContext struct {
	ExampleText     string
	Translation     string
	ExampleAudioRef string
}

// Context возвращает контекст слова, если он есть
func (w *Word) Context() (WordContext, bool) {
	if !w.HasContext() {
		return WordContext{}, false
	}
	return WordContext{
		ExampleText:     w.ExampleText,
		Translation:     w.Translation,
		ExampleAudioRef: w.ExampleAudioRef,
	}, true
}

// HasContext проверяет наличие примера с переводом
func (w *Word) HasContext() bool {
	return w.ExampleText != "" && w.Translation != ""
}

// ErrorCategory категория сложности для анализа ошибок
type ErrorCategory string

const (
	ErrorCategoryEasy   ErrorCategory = "easy"
	ErrorCategoryMedium ErrorCategory = "medium"
	ErrorCategoryHard   ErrorCategory = "hard"
)

// Границы диапазонов сложности
const (
	EasyDifficultyMax   = 7
	MediumDifficultyMax = 11
)

// DifficultyCategory определяет категорию сложности слова
func DifficultyCategory(difficulty float64) ErrorCategory {
	switch {
	case difficulty <= EasyDifficultyMax:
		return ErrorCategoryEasy
	case difficulty <= MediumDifficultyMax:
		return ErrorCategoryMedium
	default:
		return ErrorCategoryHard
	}
}

// ParseErrorCategory разбирает категорию, включая турецкие названия старых записей
func ParseErrorCategory(s string) (ErrorCategory, bool) {
	switch s {
	case string(ErrorCategoryEasy), "Kolay":
		return ErrorCategoryEasy, true
	case string(ErrorCategoryMedium), "Orta":
		return ErrorCategoryMedium, true
	case string(ErrorCategoryHard), "Zor":
		return ErrorCategoryHard, true
	}
	return "", false
}

// IsValidErrorCategory проверяет валидность категории
func IsValidErrorCategory(category string) bool {
	switch ErrorCategory(category) {
	case ErrorCategoryEasy, ErrorCategoryMedium, ErrorCategoryHard:
		return true
	}
	return false
}
