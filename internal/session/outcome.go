package session

import (
	"fmt"
	"time"

	"kelime/internal/progression"
	"kelime/internal/scheduling"
	"kelime/pkg/models"
)

// Question вопрос для отображения
type Question struct {
	SessionID string
	Mode      models.Mode
	Word      *models.Word
	Kind      models.QuestionKind
	Options   []scheduling.Option
	// Index и Total заполнены в тесте и истории, нумерация с 1
	Index  int
	Total  int
	Hearts int
}

// Update события и уведомления, возникшие в результате команды
type Update struct {
	Events  []models.Event
	Notices []models.Notice
}

// Step результат перехода к следующему вопросу
type Step struct {
	Update
	Question *Question
	// Done сессия завершена, нужно вернуться на главный экран
	Done bool
}

// FeedbackOutcome результат ответа
type FeedbackOutcome struct {
	Update
	Correct       bool
	CorrectAnswer string
	XPAwarded     int64
	Hearts        int
	StageAdvanced bool
	Stage         models.Stage
	// Redirect нужно вернуться на главный экран
	Redirect bool
	// AutoAdvance следующий вопрос показывается без кнопки
	AutoAdvance bool
	TestResult  *TestOutcome
}

// TestOutcome итог теста
type TestOutcome struct {
	progression.TestResult
	Duration time.Duration
}

// Summary итог сессии
type Summary struct {
	SessionID string
	Mode      models.Mode
	Correct   int
	Wrong     int
}

// ChestOutcome награда из сундука
type ChestOutcome struct {
	Update
	XP         int64
	Gems       int
	WordsToday int
}

// feed собирает события одной команды
type feed struct {
	events  []models.Event
	notices []models.Notice
	saveErr error
}

func (f *feed) event(kind models.EventKind, value int64, detail string) {
	f.events = append(f.events, models.Event{Kind: kind, Value: value, Detail: detail})
}

func (f *feed) notice(severity models.Severity, format string, args ...any) {
	f.notices = append(f.notices, models.Notice{Message: fmt.Sprintf(format, args...), Severity: severity})
}

// persistErr запоминает первую ошибку сохранения
func (f *feed) persistErr(err error) {
	if err != nil && f.saveErr == nil {
		f.saveErr = err
	}
}

func (f *feed) update() Update {
	return Update{Events: f.events, Notices: f.notices}
}
