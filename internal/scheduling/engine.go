package scheduling

import (
	"errors"
	"math/rand"

	"kelime/internal/catalog"
	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/internal/mastery"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

// ErrNoWordsAvailable ни один пул не дал слов
var ErrNoWordsAvailable = errors.New("нет доступных слов")

// Варианты ответа, если в пуле не нашлось других слов
const (
	unknownMeaning = "Bilinmiyor"
	unknownArabic  = "غير معروف"
	optionsCount   = 4
)

// Request запрос следующего слова
type Request struct {
	Mode     models.Mode
	Progress *models.UserProgress
	// Chapter активная глава в режиме главы
	Chapter *models.Chapter
}

// Selection выбранное слово
type Selection struct {
	Word *models.Word
	// ChapterComplete все слова главы выучены, слово не выбрано
	ChapterComplete bool
	PoolSize        int
}

// Option вариант ответа
type Option struct {
	Text    string
	Correct bool
}

// Engine выбирает следующее слово для режима
type Engine struct {
	catalog *catalog.Catalog
	clock   clock.Clock
	rnd     *rand.Rand
	rules   config.Rules
	logger  *zap.Logger
}

// NewEngine создает движок выбора слов
func NewEngine(cat *catalog.Catalog, clk clock.Clock, rnd *rand.Rand, rules config.Rules, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: cat,
		clock:   clk,
		rnd:     rnd,
		rules:   rules,
		logger:  logger,
	}
}

// Pool собирает пул слов для режима до выбора
func (e *Engine) Pool(req Request) (pool []*models.Word, chapterComplete bool) {
	mode := req.Mode.Normalize()
	p := req.Progress

	switch mode {
	case models.ModeSpacedRepetition:
		pool = SpacedRepetitionPool(e.catalog.All(), p, e.clock.Now())
	case models.ModeWeakWords:
		pool = WeakWordPool(e.catalog, p)
	case models.ModeInterleaved:
		pool = InterleavedPool(e.catalog.All(), e.rules.InterleaveLimit)
	case models.ModePractice:
		pool = PracticePool(e.catalog.All(), p, e.rules.PracticeMaxCorrect)
	case models.ModeContextual:
		pool = ContextualPool(e.catalog)
	case models.ModeChapter:
		if req.Chapter == nil || len(req.Chapter.Words) == 0 {
			e.logger.Warn("активная глава не задана, используется весь каталог")
			return e.catalog.All(), false
		}
		pool, chapterComplete = e.chapterPool(req.Chapter, p)
		if chapterComplete {
			return nil, true
		}
		return pool, false
	default:
		pool = e.catalog.All()
	}

	if len(pool) == 0 {
		e.logger.Debug("пул режима пуст, используется весь каталог", zap.String("mode", string(mode)))
		pool = e.catalog.All()
	}

	if e.rules.Adaptation.Enabled {
		avg := mastery.AverageDifficulty(p, e.catalog, e.rules.Adaptation.DefaultAverage)
		target := TargetDifficulty(p.Level(), avg, e.rules.Adaptation)
		if filtered := AdaptDifficulty(pool, target, e.rules.Adaptation.Window); len(filtered) > 0 {
			pool = filtered
		}
	}
	return pool, false
}

// chapterPool пул главы; пустой пул при невыученных словах пересчитывается по всей главе
func (e *Engine) chapterPool(chapter *models.Chapter, p *models.UserProgress) ([]*models.Word, bool) {
	pool := ChapterPool(chapter, p)
	if len(pool) > 0 {
		return pool, false
	}

	valid := 0
	if cp := p.Chapters[chapter.ID]; cp != nil {
		valid = cp.ValidLearned(chapter.WordSet())
	}
	if valid >= len(chapter.Words) {
		return nil, true
	}

	e.logger.Warn("пул главы устарел, пересчитываем",
		zap.Int("chapter_id", chapter.ID),
		zap.Int("learned", valid),
		zap.Int("total", len(chapter.Words)))
	return chapter.Words, false
}

// Next выбирает следующее слово равновероятно из итогового пула
func (e *Engine) Next(req Request) (*Selection, error) {
	pool, complete := e.Pool(req)
	if complete {
		return &Selection{ChapterComplete: true}, nil
	}
	if len(pool) == 0 {
		return nil, ErrNoWordsAvailable
	}
	return &Selection{Word: pool[e.rnd.Intn(len(pool))], PoolSize: len(pool)}, nil
}

// QuestionKind вид вопроса для режима и стадии слова
func (e *Engine) QuestionKind(mode models.Mode, p *models.UserProgress, word *models.Word) models.QuestionKind {
	var kind models.QuestionKind

	switch mode.Normalize() {
	case models.ModeAudioFirst:
		kind = models.QuestionAudio
	case models.ModeContextual:
		kind = models.QuestionContextual
	case models.ModeInterleaved, models.ModePractice:
		kinds := []models.QuestionKind{
			models.QuestionRecognition,
			models.QuestionRecall,
			models.QuestionContextual,
			models.QuestionAudio,
		}
		kind = kinds[e.rnd.Intn(len(kinds))]
	case models.ModeRecognitionRecall:
		kind = models.QuestionRecognition
		if wp := p.Words[word.ID]; wp != nil {
			switch wp.Stage {
			case models.StageRecall:
				kind = models.QuestionRecall
			case models.StageProduction:
				kind = models.QuestionProduction
			}
		}
	default:
		kind = models.QuestionRecognition
	}

	if kind == models.QuestionContextual && !word.HasContext() {
		kind = models.QuestionRecognition
	}
	return kind
}

// AnswerOptions правильный ответ и до трех отвлекающих вариантов в случайном порядке.
// В режиме главы варианты берутся из слов главы.
func (e *Engine) AnswerOptions(word *models.Word, kind models.QuestionKind, chapter *models.Chapter) []Option {
	text := func(w *models.Word) string { return w.Meaning }
	fallback := unknownMeaning
	if kind == models.QuestionRecall {
		text = func(w *models.Word) string { return w.ArabicForm }
		fallback = unknownArabic
	}

	source := e.catalog.All()
	if chapter != nil && len(chapter.Words) > 0 {
		source = make([]*models.Word, len(chapter.Words))
		copy(source, chapter.Words)
	}

	correct := text(word)
	options := []Option{{Text: correct, Correct: true}}

	e.rnd.Shuffle(len(source), func(i, j int) { source[i], source[j] = source[j], source[i] })
	seen := map[string]struct{}{correct: {}}
	for _, w := range source {
		if len(options) == optionsCount {
			break
		}
		t := text(w)
		if w.ID == word.ID || t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		options = append(options, Option{Text: t})
	}

	if len(options) < 2 {
		options = append(options, Option{Text: fallback})
	}

	e.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return options
}

// CorrectAnswer текст правильного ответа для вида вопроса
func CorrectAnswer(word *models.Word, kind models.QuestionKind) string {
	if kind == models.QuestionRecall {
		return word.ArabicForm
	}
	return word.Meaning
}
