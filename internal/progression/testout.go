package progression

import (
	"errors"
	"fmt"
	"math"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

var (
	ErrTestNotFound = errors.New("тест не найден")
	ErrTestLocked   = errors.New("недостаточный уровень для теста")
	ErrNoTestWords  = errors.New("нет слов для уровня теста")
)

// levelStep шаг сложности, соответствующий одному уровню теста
const levelStep = 1.5

type wordSource interface {
	All() []*models.Word
}

type shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// TestResult итог теста
type TestResult struct {
	Test    models.TestOut
	Correct int
	Total   int
	Percent int
	XP      int64
	Gems    int
}

// Tests список тестов
func (g *Gate) Tests() []models.TestOut {
	return g.rules.Tests
}

// CanTakeTest уровень всегда вычисляется из опыта
func (g *Gate) CanTakeTest(p *models.UserProgress, test models.TestOut) bool {
	return p.Level() >= test.RequiredLevel
}

// StartTest проверяет доступ к тесту и собирает его вопросы
func (g *Gate) StartTest(p *models.UserProgress, testID int) (models.TestOut, []*models.Word, error) {
	test, ok := g.rules.TestByID(testID)
	if !ok {
		return models.TestOut{}, nil, fmt.Errorf("%w: %d", ErrTestNotFound, testID)
	}
	if !g.CanTakeTest(p, test) {
		return test, nil, &TestLockError{Test: test, Level: p.Level()}
	}

	pool := g.TestPool(test)
	if len(pool) == 0 {
		g.logger.Warn("для теста не нашлось слов",
			zap.Int("test_id", test.ID),
			zap.Int("level", test.RequiredLevel))
		return test, nil, fmt.Errorf("%w: тест %d", ErrNoTestWords, test.ID)
	}
	return test, pool, nil
}

// TestPool слова уровня теста в случайном порядке, не больше числа вопросов.
// Уровень слова floor(difficulty/1.5) должен попасть в [L-1, L+2).
func (g *Gate) TestPool(test models.TestOut) []*models.Word {
	low, high := test.RequiredLevel-1, test.RequiredLevel+2

	pool := make([]*models.Word, 0)
	for _, w := range g.words.All() {
		level := int(math.Floor(w.Difficulty / levelStep))
		if level >= low && level < high {
			pool = append(pool, w)
		}
	}

	g.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if test.Questions > 0 && len(pool) > test.Questions {
		pool = pool[:test.Questions]
	}
	return pool
}

// ScoreTest считает процент и награду по ступеням правил
func (g *Gate) ScoreTest(test models.TestOut, correct, total int) TestResult {
	result := TestResult{Test: test, Correct: correct, Total: total}
	if total > 0 {
		result.Percent = int(math.Round(float64(correct) / float64(total) * 100))
	}
	reward := g.rules.TestRewardFor(float64(result.Percent))
	result.XP = reward.XP
	result.Gems = reward.Gems
	return result
}

// TestLockError уровень пользователя ниже требуемого
type TestLockError struct {
	Test  models.TestOut
	Level int
}

func (e *TestLockError) Error() string {
	return fmt.Sprintf("тест %q требует уровень %d, текущий %d", e.Test.Name, e.Test.RequiredLevel, e.Level)
}

func (e *TestLockError) Unwrap() error {
	return ErrTestLocked
}
