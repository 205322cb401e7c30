package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"kelime/internal/catalog"
	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/internal/mastery"
	"kelime/internal/progress"
	"kelime/internal/progression"
	"kelime/internal/scheduling"
	"kelime/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoHearts           = errors.New("сердца закончились")
	ErrNoActiveQuestion   = errors.New("нет активного вопроса")
	ErrUnknownMode        = errors.New("неизвестный режим")
	ErrNotPremium         = errors.New("функция доступна только премиум пользователям")
	ErrNotEnoughGems      = errors.New("недостаточно кристаллов")
	ErrChestAlreadyOpened = errors.New("сундук уже открыт сегодня")
	ErrChestLocked        = errors.New("недостаточно активности для сундука")
	ErrChallengeNotFound  = errors.New("задача не найдена")
	ErrChallengeLocked    = errors.New("задача закрыта")
	ErrChallengeCompleted = errors.New("задача уже выполнена")
	ErrStoryNotFound      = errors.New("история не найдена")
	ErrStoryLocked        = errors.New("история закрыта")
)

// Store хранилище прогресса
type Store interface {
	LoadReport(ctx context.Context) (*models.UserProgress, *progress.Report)
	Save(ctx context.Context, p *models.UserProgress) error
	Reset(ctx context.Context) (*models.UserProgress, error)
	SaveOfflineLesson(ctx context.Context, chapter *models.Chapter) (*models.OfflineLesson, error)
	RemoveOfflineLesson(ctx context.Context, chapterID int) error
	ClearOfflineLessons(ctx context.Context) (int, error)
}

// Recorder принимает метрики сессии
type Recorder interface {
	RecordAnswer(mode string, correct bool)
	RecordXP(amount int64, source string)
	RecordLevelUp()
	RecordLeaguePromotion(league string)
	RecordChapterCompleted()
	RecordPersistenceError()
	RecordProgressRepair(outcome string)
	RecordPoolSize(mode string, size int)
	RecordState(hearts, streak int)
}

// Deps зависимости сессии
type Deps struct {
	Store    Store
	Catalog  *catalog.Catalog
	Engine   *scheduling.Engine
	Tracker  *mastery.Tracker
	Gate     *progression.Gate
	Clock    clock.Clock
	Rand     *rand.Rand
	Rules    config.Rules
	Recorder Recorder
}

// Session состояние обучения одного пользователя.
// Не безопасна для конкурентного использования.
type Session struct {
	store    Store
	catalog  *catalog.Catalog
	engine   *scheduling.Engine
	tracker  *mastery.Tracker
	gate     *progression.Gate
	clock    clock.Clock
	rnd      *rand.Rand
	rules    config.Rules
	recorder Recorder
	logger   *zap.Logger

	progress *models.UserProgress
	run      *run
}

// run текущий проход в одном режиме
type run struct {
	id        string
	mode      models.Mode
	chapter   *models.Chapter
	test      *testRun
	challenge *models.Challenge
	story     *storyRun
	current   *Question
	answered  bool
	correct   int
	wrong     int
}

type testRun struct {
	test      models.TestOut
	words     []*models.Word
	index     int
	startedAt time.Time
}

// New создает сессию и загружает сохраненный прогресс
func New(ctx context.Context, deps Deps, logger *zap.Logger) *Session {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &Session{
		store:    deps.Store,
		catalog:  deps.Catalog,
		engine:   deps.Engine,
		tracker:  deps.Tracker,
		gate:     deps.Gate,
		clock:    deps.Clock,
		rnd:      deps.Rand,
		rules:    deps.Rules,
		recorder: recorder,
		logger:   logger,
	}

	p, report := s.store.LoadReport(ctx)
	outcome := string(report.Outcome)
	if report.Outcome == progress.OutcomeRestored && report.Changed() {
		outcome = "repaired"
	}
	s.recorder.RecordProgressRepair(outcome)

	s.progress = p
	if s.gate.SyncChapters(p) {
		if err := s.store.Save(ctx, p); err != nil {
			s.logger.Error("ошибка сохранения пересчитанных глав", zap.Error(err))
			s.recorder.RecordPersistenceError()
		}
	}
	s.recorder.RecordState(p.Hearts, p.Streak)

	s.logger.Info("сессия загружена",
		zap.String("outcome", outcome),
		zap.Int64("xp", p.XP),
		zap.Int("words", len(p.Words)),
		zap.Int("catalog", s.catalog.Len()))
	return s
}

// Progress текущий прогресс только для чтения
func (s *Session) Progress() *models.UserProgress {
	return s.progress
}

// Mode текущий режим или пустая строка вне сессии
func (s *Session) Mode() models.Mode {
	if s.run == nil {
		return models.ModeDefault
	}
	return s.run.mode
}

// Current текущий вопрос
func (s *Session) Current() *Question {
	if s.run == nil {
		return nil
	}
	return s.run.current
}

// canPlay премиум пользователи не тратят сердца
func (s *Session) canPlay() bool {
	return s.progress.IsPremium || s.progress.Hearts > 0
}

// StartMode начинает обучение в режиме, прерывая текущую сессию
func (s *Session) StartMode(ctx context.Context, mode models.Mode) (*Step, error) {
	switch {
	case !models.IsValidMode(string(mode)):
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	case mode == models.ModeTestOut, mode == models.ModeChallenge, mode == models.ModeStory:
		return nil, fmt.Errorf("%w: %q запускается по номеру", ErrUnknownMode, mode)
	}
	if mode == models.ModeChapter {
		return nil, fmt.Errorf("%w: глава запускается по номеру", ErrUnknownMode)
	}

	f := &feed{}
	s.refillHearts(f)
	if !s.canPlay() {
		s.finish(ctx, f)
		return nil, ErrNoHearts
	}

	s.begin(mode.Normalize(), nil, nil)
	step := s.next(ctx, f)
	s.finish(ctx, f)
	step.Update = f.update()
	return step, nil
}

// StartChapter начинает прохождение главы
func (s *Session) StartChapter(ctx context.Context, chapterID int) (*Step, error) {
	f := &feed{}
	s.refillHearts(f)

	ch, err := s.gate.StartChapter(ctx, s.progress, chapterID)
	if err != nil && ch == nil {
		s.finish(ctx, f)
		return nil, err
	}
	f.persistErr(err)

	if !s.canPlay() {
		s.finish(ctx, f)
		return nil, ErrNoHearts
	}

	s.begin(models.ModeChapter, ch, nil)
	step := s.next(ctx, f)
	s.finish(ctx, f)
	step.Update = f.update()
	return step, nil
}

// StartTestOut начинает тест для перехода на уровень
func (s *Session) StartTestOut(ctx context.Context, testID int) (*Step, error) {
	f := &feed{}
	s.refillHearts(f)

	test, words, err := s.gate.StartTest(s.progress, testID)
	if err != nil {
		s.finish(ctx, f)
		return nil, err
	}
	if !s.canPlay() {
		s.finish(ctx, f)
		return nil, ErrNoHearts
	}

	s.begin(models.ModeTestOut, nil, &testRun{test: test, words: words, startedAt: s.clock.Now()})
	step := s.next(ctx, f)
	s.finish(ctx, f)
	step.Update = f.update()
	return step, nil
}

// begin сбрасывает состояние предыдущей сессии
func (s *Session) begin(mode models.Mode, chapter *models.Chapter, test *testRun) {
	s.run = &run{
		id:      uuid.NewString(),
		mode:    mode,
		chapter: chapter,
		test:    test,
	}
	fields := []zap.Field{zap.String("session_id", s.run.id), zap.String("mode", string(mode))}
	if chapter != nil {
		fields = append(fields, zap.Int("chapter_id", chapter.ID))
	}
	if test != nil {
		fields = append(fields, zap.Int("test_id", test.test.ID), zap.Int("questions", len(test.words)))
	}
	s.logger.Info("сессия начата", fields...)
}

// Advance переходит к следующему вопросу после ответа
func (s *Session) Advance(ctx context.Context) (*Step, error) {
	if s.run == nil {
		return &Step{Done: true}, nil
	}
	if s.run.current != nil && !s.run.answered {
		return &Step{Question: s.run.current}, nil
	}

	f := &feed{}
	step := s.next(ctx, f)
	s.finish(ctx, f)
	step.Update = f.update()
	return step, nil
}

// next выбирает следующий вопрос. Done означает возврат на главный экран.
func (s *Session) next(ctx context.Context, f *feed) *Step {
	r := s.run
	if r.test != nil {
		return s.nextTestQuestion()
	}
	if r.story != nil {
		return s.nextStoryQuestion()
	}

	sel, err := s.engine.Next(scheduling.Request{Mode: r.mode, Progress: s.progress, Chapter: r.chapter})
	if err != nil {
		s.logger.Warn("нет слов для режима", zap.String("mode", string(r.mode)), zap.Error(err))
		f.notice(models.SeverityWarning, msgNoWords)
		s.end()
		return &Step{Done: true}
	}

	if sel.ChapterComplete {
		s.completeChapter(ctx, f)
		s.end()
		return &Step{Done: true}
	}

	s.recorder.RecordPoolSize(string(r.mode), sel.PoolSize)
	kind := s.engine.QuestionKind(r.mode, s.progress, sel.Word)
	return s.present(sel.Word, kind, r.chapter, 0, 0)
}

func (s *Session) nextTestQuestion() *Step {
	t := s.run.test
	if t.index >= len(t.words) {
		s.end()
		return &Step{Done: true}
	}

	kind := models.QuestionRecognition
	if s.rnd.Intn(2) == 1 {
		kind = models.QuestionRecall
	}
	return s.present(t.words[t.index], kind, nil, t.index+1, len(t.words))
}

func (s *Session) present(word *models.Word, kind models.QuestionKind, chapter *models.Chapter, index, total int) *Step {
	q := &Question{
		SessionID: s.run.id,
		Mode:      s.run.mode,
		Word:      word,
		Kind:      kind,
		Options:   s.engine.AnswerOptions(word, kind, chapter),
		Index:     index,
		Total:     total,
		Hearts:    s.progress.Hearts,
	}
	s.run.current = q
	s.run.answered = false
	return &Step{Question: q}
}

// completeChapter выдает награду за главу, если она действительно пройдена
func (s *Session) completeChapter(ctx context.Context, f *feed) {
	ch := s.run.chapter
	completion, err := s.gate.Complete(ctx, s.progress, ch.ID)
	switch {
	case errors.Is(err, progression.ErrChapterIncomplete), errors.Is(err, progression.ErrAlreadyRewarded):
		f.notice(models.SeveritySuccess, msgAllWordsDone)
		return
	case completion == nil:
		s.logger.Error("ошибка завершения главы", zap.Int("chapter_id", ch.ID), zap.Error(err))
		f.notice(models.SeverityError, msgGeneric)
		return
	}
	f.persistErr(err)

	s.addXP(ctx, completion.XP, "chapter", f)
	s.recorder.RecordChapterCompleted()
	f.event(models.EventChapterCompleted, int64(ch.ID), ch.Name)
	f.notice(models.SeveritySuccess, msgChapterDone, ch.Name, completion.XP, completion.Gems)
}

// EndSession завершает текущую сессию и возвращает ее итог
func (s *Session) EndSession() Summary {
	if s.run == nil {
		return Summary{}
	}
	summary := Summary{SessionID: s.run.id, Mode: s.run.mode, Correct: s.run.correct, Wrong: s.run.wrong}
	s.end()
	return summary
}

func (s *Session) end() {
	if s.run == nil {
		return
	}
	s.logger.Info("сессия завершена",
		zap.String("session_id", s.run.id),
		zap.String("mode", string(s.run.mode)),
		zap.Int("correct", s.run.correct),
		zap.Int("wrong", s.run.wrong))
	s.run = nil
}

// finish сохраняет прогресс в конце команды. Ошибка сохранения не прерывает
// сессию: состояние в памяти остается основным, пользователь получает предупреждение.
func (s *Session) finish(ctx context.Context, f *feed) {
	f.persistErr(s.store.Save(ctx, s.progress))
	if f.saveErr != nil {
		s.logger.Error("прогресс не сохранен", zap.Error(f.saveErr))
		s.recorder.RecordPersistenceError()
		f.event(models.EventPersistenceWarning, 0, f.saveErr.Error())
		f.notice(models.SeverityWarning, msgSaveFailed)
	}
	s.recorder.RecordState(s.progress.Hearts, s.progress.Streak)
}

// Reset удаляет весь прогресс и прерывает сессию
func (s *Session) Reset(ctx context.Context) (*Update, error) {
	s.end()

	p, err := s.store.Reset(ctx)
	s.progress = p
	if err != nil {
		s.recorder.RecordPersistenceError()
		return nil, err
	}
	if err := s.store.Save(ctx, p); err != nil {
		s.recorder.RecordPersistenceError()
		return nil, err
	}
	s.recorder.RecordState(p.Hearts, p.Streak)

	f := &feed{}
	f.notice(models.SeveritySuccess, msgReset)
	u := f.update()
	return &u, nil
}

type nopRecorder struct{}

func (nopRecorder) RecordAnswer(string, bool) {}
func (nopRecorder) RecordXP(int64, string) {}
func (nopRecorder) RecordLevelUp() {}
func (nopRecorder) RecordLeaguePromotion(string) {}
func (nopRecorder) RecordChapterCompleted() {}
func (nopRecorder) RecordPersistenceError() {}
func (nopRecorder) RecordProgressRepair(string) {}
func (nopRecorder) RecordPoolSize(string, int) {}
func (nopRecorder) RecordState(hearts, streak int) {}
