package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"kelime/internal/catalog"
	"kelime/internal/clock"
	"kelime/internal/config"
	"kelime/internal/mastery"
	"kelime/internal/progress"
	"kelime/internal/progression"
	"kelime/internal/scheduling"
	"kelime/internal/store"
	"kelime/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type setup struct {
	words []*models.Word
	seed  func(p *models.UserProgress)
	rules func(r *config.Rules)
	quota int
}

type harness struct {
	session *Session
	clock   *clock.Manual
	store   *progress.Store
	mem     *store.Memory
}

func newHarness(t *testing.T, cfg setup) *harness {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	rules := config.DefaultRules()
	if cfg.rules != nil {
		cfg.rules(&rules)
	}
	clk := clock.NewManual(testNow)
	mem := store.NewMemory(cfg.quota)
	ps := progress.NewStore(mem, clk, rules, progress.Options{}, logger)

	if cfg.seed != nil {
		p := ps.Default()
		cfg.seed(p)
		require.NoError(t, ps.Save(ctx, p))
	}

	rnd := rand.New(rand.NewSource(1))
	cat := catalog.New(cfg.words, logger)
	chapters := cat.BuildChapters(rules.Chapters)

	s := New(ctx, Deps{
		Store:   ps,
		Catalog: cat,
		Engine:  scheduling.NewEngine(cat, clk, rnd, rules, logger),
		Tracker: mastery.NewTracker(ps, clk, rules, logger),
		Gate:    progression.NewGate(chapters, cat, ps, rnd, rules, logger),
		Clock:   clk,
		Rand:    rnd,
		Rules:   rules,
	}, logger)

	return &harness{session: s, clock: clk, store: ps, mem: mem}
}

func wordRange(from, to int64, difficulty func(id int64) float64) []*models.Word {
	out := make([]*models.Word, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, &models.Word{
			ID:         id,
			ArabicForm: fmt.Sprintf("كلمة %d", id),
			Meaning:    fmt.Sprintf("anlam %d", id),
			Difficulty: difficulty(id),
		})
	}
	return out
}

func flat(d float64) func(int64) float64 {
	return func(int64) float64 { return d }
}

func (h *harness) answer(t *testing.T, correct bool) *FeedbackOutcome {
	t.Helper()
	q := h.session.Current()
	require.NotNil(t, q, "нет текущего вопроса")
	out, err := h.session.SubmitAnswer(context.Background(), q.Word.ID, correct)
	require.NoError(t, err)
	return out
}

func (h *harness) advance(t *testing.T) *Step {
	t.Helper()
	step, err := h.session.Advance(context.Background())
	require.NoError(t, err)
	return step
}

func countEvents(events []models.Event, kind models.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func findEvent(events []models.Event, kind models.EventKind) (models.Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return models.Event{}, false
}

func TestLevelUpFiresOnce(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 10, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 450
			p.LeagueXP = 450
			p.League = models.LeagueBronze
		},
	})
	ctx := context.Background()
	assert.Equal(t, 5, h.session.Progress().Level())

	gained, update := h.session.AddXP(ctx, 60, "test")
	assert.Equal(t, int64(60), gained)
	assert.Equal(t, int64(510), h.session.Progress().XP)
	assert.Equal(t, 6, h.session.Progress().Level())
	require.Equal(t, 1, countEvents(update.Events, models.EventLevelUp))
	levelUp, _ := findEvent(update.Events, models.EventLevelUp)
	assert.Equal(t, int64(6), levelUp.Value)

	promotion, ok := findEvent(update.Events, models.EventLeaguePromotion)
	require.True(t, ok)
	assert.Equal(t, string(models.LeagueSilver), promotion.Detail)

	_, update = h.session.AddXP(ctx, 10, "test")
	assert.Zero(t, countEvents(update.Events, models.EventLevelUp))
	assert.Zero(t, countEvents(update.Events, models.EventLeaguePromotion))
}

func TestAddXPClampsAtMaximum(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 3, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = models.MaxXP - 5
			p.LeagueXP = models.MaxXP - 5
		},
	})
	ctx := context.Background()

	gained, _ := h.session.AddXP(ctx, 100, "test")
	assert.Equal(t, int64(5), gained)
	assert.Equal(t, models.MaxXP, h.session.Progress().XP)

	gained, update := h.session.AddXP(ctx, 100, "test")
	assert.Zero(t, gained)
	require.Len(t, update.Notices, 1)
	assert.Equal(t, msgMaxXP, update.Notices[0].Message)

	gained, _ = h.session.AddXP(ctx, -5, "test")
	assert.Zero(t, gained)
}

func TestCorrectAnswer(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 10, flat(5))})
	ctx := context.Background()

	step, err := h.session.StartMode(ctx, models.ModeSpacedRepetition)
	require.NoError(t, err)
	require.NotNil(t, step.Question)
	assert.False(t, step.Done)
	assert.Len(t, step.Question.Options, 4)
	assert.NotEmpty(t, step.Question.SessionID)

	out := h.answer(t, true)
	assert.True(t, out.Correct)
	assert.Equal(t, int64(10), out.XPAwarded)
	assert.Equal(t, scheduling.CorrectAnswer(step.Question.Word, step.Question.Kind), out.CorrectAnswer)

	p := h.session.Progress()
	assert.Equal(t, int64(10), p.XP)
	assert.Equal(t, int64(10), p.LeagueXP)
	assert.Equal(t, models.LeagueBronze, p.League)
	assert.Equal(t, 1, p.DailyProgress)
	assert.Equal(t, 1, p.Streak)
	assert.Equal(t, "2024-05-10", p.LastStudyDate)
	assert.Equal(t, 1, countEvents(out.Events, models.EventLeagueJoined))

	loaded := h.store.Load(ctx)
	assert.Equal(t, int64(10), loaded.XP)
	assert.Len(t, loaded.Words, 1)
}

func TestWrongAnswer(t *testing.T) {
	tests := []struct {
		name    string
		premium bool
		hearts  int
	}{
		{name: "обычный пользователь теряет сердце", premium: false, hearts: 4},
		{name: "премиум не теряет сердце", premium: true, hearts: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{
				words: wordRange(1, 10, flat(5)),
				seed: func(p *models.UserProgress) {
					p.XP = 10
					p.IsPremium = tt.premium
				},
			})
			_, err := h.session.StartMode(context.Background(), models.ModeSpacedRepetition)
			require.NoError(t, err)

			wordID := h.session.Current().Word.ID
			out := h.answer(t, false)
			assert.False(t, out.Correct)
			assert.Zero(t, out.XPAwarded)
			assert.Equal(t, tt.hearts, out.Hearts)

			p := h.session.Progress()
			assert.Equal(t, []int64{wordID}, p.WeakWords)
			assert.Equal(t, 1, p.ErrorAnalysis[wordID].Count)
			if tt.premium {
				assert.Nil(t, p.HeartsRefillTime)
			} else {
				require.NotNil(t, p.HeartsRefillTime)
				assert.Equal(t, testNow, *p.HeartsRefillTime)
			}
		})
	}
}

func TestHeartsDepletedRedirects(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 10, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 10
			p.Hearts = 1
		},
	})
	ctx := context.Background()

	_, err := h.session.StartMode(ctx, models.ModePractice)
	require.NoError(t, err)

	out := h.answer(t, false)
	assert.Zero(t, out.Hearts)
	assert.True(t, out.Redirect)
	assert.Equal(t, 1, countEvents(out.Events, models.EventHeartsDepleted))

	step := h.advance(t)
	assert.True(t, step.Done)

	_, err = h.session.StartMode(ctx, models.ModePractice)
	assert.ErrorIs(t, err, ErrNoHearts)
	assert.Equal(t, msgNoHearts, Message(err))
}

func TestRefillHearts(t *testing.T) {
	refillStart := testNow.Add(-65 * time.Minute)
	h := newHarness(t, setup{
		words: wordRange(1, 3, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 10
			p.Hearts = 2
			p.HeartsRefillTime = &refillStart
		},
	})
	ctx := context.Background()

	added, update := h.session.RefillHearts(ctx)
	assert.Equal(t, 2, added)
	assert.Equal(t, 4, h.session.Progress().Hearts)
	require.NotNil(t, h.session.Progress().HeartsRefillTime)
	assert.Equal(t, testNow.Add(-5*time.Minute), *h.session.Progress().HeartsRefillTime)
	assert.Equal(t, 1, countEvents(update.Events, models.EventHeartsRefilled))

	h.clock.Advance(20 * time.Minute)
	added, _ = h.session.RefillHearts(ctx)
	assert.Zero(t, added, "интервал еще не прошел")

	h.clock.Advance(10 * time.Minute)
	added, _ = h.session.RefillHearts(ctx)
	assert.Equal(t, 1, added)
	assert.Equal(t, 5, h.session.Progress().Hearts)
	assert.Nil(t, h.session.Progress().HeartsRefillTime)

	assert.Equal(t, 5, h.store.Load(ctx).Hearts)
}

func TestRefillHeartsWithGems(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 3, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 10
			p.Hearts = 0
			p.Gems = 60
		},
	})
	ctx := context.Background()

	_, err := h.session.RefillHeartsWithGems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, h.session.Progress().Hearts)
	assert.Equal(t, 10, h.session.Progress().Gems)

	h.session.Progress().Hearts = 0
	_, err = h.session.RefillHeartsWithGems(ctx)
	assert.ErrorIs(t, err, ErrNotEnoughGems)
	assert.Zero(t, h.session.Progress().Hearts)
}

func TestDailyGoalBonusOnce(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 10, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 10
			p.DailyGoal = 3
		},
	})
	_, err := h.session.StartMode(context.Background(), models.ModeSpacedRepetition)
	require.NoError(t, err)

	goals := 0
	for i := 0; i < 5; i++ {
		out := h.answer(t, true)
		goals += countEvents(out.Events, models.EventDailyGoal)
		if i == 2 {
			assert.Equal(t, int64(60), out.XPAwarded, "ответ и бонус за цель")
		}
		h.advance(t)
	}

	assert.Equal(t, 1, goals)
	p := h.session.Progress()
	assert.Equal(t, 5, p.DailyProgress)
	assert.Equal(t, int64(10+5*10+50), p.XP)
	assert.True(t, p.HasBadge(models.BadgeDailyAchiever))
}

func TestDailyProgressResetsOnNewDay(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 10, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 10
			p.DailyProgress = 7
			p.DailyProgressDate = "2024-05-09"
			p.LastStudyDate = "2024-05-09"
		},
	})
	assert.Zero(t, h.session.Snapshot().DailyProgress)

	_, err := h.session.StartMode(context.Background(), models.ModePractice)
	require.NoError(t, err)
	h.answer(t, true)

	p := h.session.Progress()
	assert.Equal(t, 1, p.DailyProgress)
	assert.Equal(t, "2024-05-10", p.DailyProgressDate)
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name      string
		lastStudy string
		streak    int
		expected  int
	}{
		{name: "первый день", lastStudy: "", streak: 0, expected: 1},
		{name: "вчера занимался", lastStudy: "2024-05-09", streak: 4, expected: 5},
		{name: "пропущен день", lastStudy: "2024-05-07", streak: 9, expected: 1},
		{name: "уже занимался сегодня", lastStudy: "2024-05-10", streak: 3, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{
				words: wordRange(1, 5, flat(5)),
				seed: func(p *models.UserProgress) {
					p.XP = 10
					p.LastStudyDate = tt.lastStudy
					p.Streak = tt.streak
				},
			})
			_, err := h.session.StartMode(context.Background(), models.ModePractice)
			require.NoError(t, err)
			h.answer(t, true)

			assert.Equal(t, tt.expected, h.session.Progress().Streak)
		})
	}
}

func TestChapterFlow(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 20, func(id int64) float64 { return float64(id) })})
	ctx := context.Background()

	_, err := h.session.StartChapter(ctx, 2)
	assert.ErrorIs(t, err, progression.ErrChapterLocked)
	assert.Equal(t, "🔒 Önceki bölümü tamamlamalısınız!", Message(err))

	step, err := h.session.StartChapter(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, step.Question)

	var events []models.Event
	for i := 0; i < 2; i++ {
		id := h.session.Current().Word.ID
		assert.Contains(t, []int64{1, 2}, id)
		h.answer(t, true)
		step = h.advance(t)
		events = append(events, step.Events...)
	}

	assert.True(t, step.Done)
	completed, ok := findEvent(events, models.EventChapterCompleted)
	require.True(t, ok)
	assert.Equal(t, int64(1), completed.Value)

	p := h.session.Progress()
	assert.Equal(t, int64(2*10+100), p.XP)
	assert.Equal(t, 10, p.Gems)
	assert.Equal(t, 2, p.Chapters[1].Completed)

	statuses := h.session.Chapters()
	assert.Equal(t, models.ChapterCompleted, statuses[0].State)
	assert.Equal(t, models.ChapterUnlockable, statuses[1].State)

	step, err = h.session.StartChapter(ctx, 1)
	require.NoError(t, err)
	assert.True(t, step.Done, "пройденная глава не выдает вопросов")
	assert.Zero(t, countEvents(step.Events, models.EventChapterCompleted))
	assert.Equal(t, 10, h.session.Progress().Gems, "награда выдается один раз")

	step, err = h.session.StartChapter(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, step.Question)
	assert.Contains(t, []int64{3, 4}, step.Question.Word.ID)
}

func TestTestOutRewardTiers(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		percent int
		xp      int64
		gems    int
	}{
		{name: "90 процентов", correct: 18, percent: 90, xp: 100, gems: 20},
		{name: "70 процентов", correct: 14, percent: 70, xp: 70, gems: 10},
		{name: "50 процентов", correct: 10, percent: 50, xp: 50, gems: 5},
		{name: "ниже 50", correct: 5, percent: 25, xp: 30, gems: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{
				words: wordRange(1, 30, flat(1)),
				seed: func(p *models.UserProgress) {
					p.XP = 10
					p.DailyGoal = 100
				},
			})

			step, err := h.session.StartTestOut(context.Background(), 1)
			require.NoError(t, err)
			require.NotNil(t, step.Question)
			assert.Equal(t, 1, step.Question.Index)
			assert.Equal(t, 20, step.Question.Total)

			var last *FeedbackOutcome
			for i := 0; i < 20; i++ {
				q := h.session.Current()
				require.NotNil(t, q)
				assert.Contains(t, []models.QuestionKind{models.QuestionRecognition, models.QuestionRecall}, q.Kind)

				last = h.answer(t, i < tt.correct)
				assert.True(t, last.AutoAdvance)
				if i < 19 {
					assert.Nil(t, last.TestResult)
					assert.Zero(t, last.XPAwarded, "в тесте опыт за вопрос не начисляется")
					h.advance(t)
				}
			}

			require.NotNil(t, last.TestResult)
			assert.True(t, last.Redirect)
			assert.Equal(t, tt.percent, last.TestResult.Percent)
			assert.Equal(t, tt.xp, last.TestResult.XP)
			assert.Equal(t, tt.gems, last.TestResult.Gems)

			p := h.session.Progress()
			assert.Equal(t, 10+tt.xp, p.XP)
			assert.Equal(t, tt.gems, p.Gems)
			assert.Equal(t, 5, p.Hearts, "в тесте сердца не тратятся")
			assert.Empty(t, p.WeakWords)
			assert.Len(t, p.Words, 20)

			assert.True(t, h.advance(t).Done)
		})
	}
}

func TestStartTestOutErrors(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 30, flat(1))})
	ctx := context.Background()

	_, err := h.session.StartTestOut(ctx, 2)
	assert.ErrorIs(t, err, progression.ErrTestLocked)
	assert.Equal(t, "🔒 Bu sınav için seviye 5 gerekiyor!", Message(err))

	_, err = h.session.StartTestOut(ctx, 9)
	assert.ErrorIs(t, err, progression.ErrTestNotFound)
}

func TestSubmitAnswerRequiresActiveQuestion(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 10, flat(5))})
	ctx := context.Background()

	_, err := h.session.SubmitAnswer(ctx, 1, true)
	assert.ErrorIs(t, err, ErrNoActiveQuestion)

	_, err = h.session.StartMode(ctx, models.ModeInterleaved)
	require.NoError(t, err)
	q := h.session.Current()

	_, err = h.session.SubmitAnswer(ctx, q.Word.ID+1000, true)
	assert.ErrorIs(t, err, ErrNoActiveQuestion)

	_, err = h.session.SubmitAnswer(ctx, q.Word.ID, true)
	require.NoError(t, err)

	_, err = h.session.SubmitAnswer(ctx, q.Word.ID, true)
	assert.ErrorIs(t, err, ErrNoActiveQuestion, "повторный ответ не засчитывается")
	assert.Equal(t, int64(10), h.session.Progress().XP)
}

func TestSubmitOption(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 10, flat(5))})
	ctx := context.Background()

	_, err := h.session.StartMode(ctx, models.ModeRecognitionRecall)
	require.NoError(t, err)
	q := h.session.Current()

	correct := -1
	for i, opt := range q.Options {
		if opt.Correct {
			correct = i
		}
	}
	require.GreaterOrEqual(t, correct, 0)

	_, err = h.session.SubmitOption(ctx, len(q.Options))
	assert.ErrorIs(t, err, ErrNoActiveQuestion)

	out, err := h.session.SubmitOption(ctx, correct)
	require.NoError(t, err)
	assert.True(t, out.Correct)
}

func TestStartModeValidation(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 10, flat(5))})
	ctx := context.Background()

	for _, mode := range []models.Mode{"story", models.ModeTestOut, models.ModeChapter} {
		_, err := h.session.StartMode(ctx, mode)
		assert.ErrorIs(t, err, ErrUnknownMode, string(mode))
	}

	step, err := h.session.StartMode(ctx, models.ModeConversation)
	require.NoError(t, err)
	assert.Equal(t, models.ModeContextual, step.Question.Mode)
}

func TestEmptyCatalogRedirects(t *testing.T) {
	h := newHarness(t, setup{})

	step, err := h.session.StartMode(context.Background(), models.ModeSpacedRepetition)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Nil(t, step.Question)
	require.NotEmpty(t, step.Notices)
	assert.Equal(t, msgNoWords, step.Notices[0].Message)
	assert.Nil(t, h.session.Current())
}

func TestDailyChest(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 10, flat(5))})
	ctx := context.Background()

	_, err := h.session.OpenDailyChest(ctx)
	assert.ErrorIs(t, err, ErrChestLocked)

	_, err = h.session.StartMode(ctx, models.ModeSpacedRepetition)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		h.answer(t, true)
		h.advance(t)
	}
	assert.True(t, h.session.Snapshot().ChestAvailable)

	xpBefore := h.session.Progress().XP
	chest, err := h.session.OpenDailyChest(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, chest.XP, int64(25))
	assert.LessOrEqual(t, chest.XP, int64(74))
	assert.GreaterOrEqual(t, chest.Gems, 10)
	assert.LessOrEqual(t, chest.Gems, 29)
	assert.Equal(t, 5, chest.WordsToday)
	assert.Equal(t, xpBefore+chest.XP, h.session.Progress().XP)

	_, err = h.session.OpenDailyChest(ctx)
	assert.ErrorIs(t, err, ErrChestAlreadyOpened)

	h.clock.Advance(24 * time.Hour)
	_, err = h.session.OpenDailyChest(ctx)
	assert.ErrorIs(t, err, ErrChestLocked, "новый день без активности")
}

func TestGiftChest(t *testing.T) {
	tests := []struct {
		name     string
		first    bool
		lastGift string
		expected bool
	}{
		{name: "первый подарок разрешен", first: true, expected: true},
		{name: "первый подарок отключен", first: false, expected: false},
		{name: "неделя еще не прошла", first: true, lastGift: "2024-05-05", expected: false},
		{name: "прошла неделя", first: true, lastGift: "2024-05-03", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{
				words: wordRange(1, 5, flat(5)),
				seed: func(p *models.UserProgress) {
					p.XP = 200
					p.DailyGoal = 1
					p.LastGiftDate = tt.lastGift
				},
				rules: func(r *config.Rules) {
					r.GiftChest.FirstOnQualification = tt.first
				},
			})
			_, err := h.session.StartMode(context.Background(), models.ModePractice)
			require.NoError(t, err)

			out := h.answer(t, true)
			assert.Equal(t, 1, countEvents(out.Events, models.EventDailyGoal))
			gift, got := findEvent(out.Events, models.EventGiftChest)
			assert.Equal(t, tt.expected, got)
			if tt.expected {
				assert.Equal(t, "2024-05-10", h.session.Progress().LastGiftDate)
				assert.GreaterOrEqual(t, gift.Value, int64(50))
				assert.LessOrEqual(t, gift.Value, int64(149))
			}
		})
	}
}

func TestPersistenceFailureKeepsSessionAlive(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 10, flat(5)), quota: 50})
	ctx := context.Background()

	step, err := h.session.StartMode(ctx, models.ModeSpacedRepetition)
	require.NoError(t, err)
	require.NotNil(t, step.Question)
	assert.Equal(t, 1, countEvents(step.Events, models.EventPersistenceWarning))

	out := h.answer(t, true)
	assert.Equal(t, 1, countEvents(out.Events, models.EventPersistenceWarning))
	assert.Equal(t, int64(10), h.session.Progress().XP, "состояние в памяти остается основным")
	require.NotEmpty(t, out.Notices)
	assert.Equal(t, msgSaveFailed, out.Notices[len(out.Notices)-1].Message)
}

func TestOfflineLessons(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 20, func(id int64) float64 { return float64(id) }),
		seed:  func(p *models.UserProgress) { p.XP = 10 },
	})
	ctx := context.Background()

	_, err := h.session.ToggleOfflineLesson(ctx, 1)
	assert.ErrorIs(t, err, ErrNotPremium)

	h.session.SetPremium(ctx, true)
	_, err = h.session.ToggleOfflineLesson(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, h.session.Progress().OfflineLessons)

	words, err := h.store.OfflineWords(ctx)
	require.NoError(t, err)
	assert.Len(t, words, 2)

	_, err = h.session.ToggleOfflineLesson(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, h.session.Progress().OfflineLessons)

	_, err = h.session.ToggleOfflineLesson(ctx, 2)
	require.NoError(t, err)
	_, err = h.session.ClearOfflineLessons(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.session.Progress().OfflineLessons)
	words, err = h.store.OfflineWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)

	_, err = h.session.ToggleOfflineLesson(ctx, 42)
	assert.ErrorIs(t, err, progression.ErrChapterNotFound)
}

func TestUnlockSkill(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 5, flat(5)),
		seed:  func(p *models.UserProgress) { p.XP = 100 },
	})
	ctx := context.Background()

	_, err := h.session.UnlockSkill(ctx, 2)
	assert.Equal(t, "🔒 Bu beceriyi açmak için 200 XP gerekli!", Message(err))

	_, err = h.session.UnlockSkill(ctx, 4)
	assert.Equal(t, "🔒 Önce şunları açmalısınız: Fiiller, İsimler", Message(err))

	_, update := h.session.AddXP(ctx, 100, "test")
	assert.Equal(t, 2, countEvents(update.Events, models.EventSkillUnlocked), "навыки 2 и 3 открываются автоматически")

	_, err = h.session.UnlockSkill(ctx, 2)
	assert.ErrorIs(t, err, progression.ErrSkillAlreadyUnlocked)
}

func TestResetDiscardsSession(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 10, flat(5)),
		seed:  func(p *models.UserProgress) { p.XP = 300 },
	})
	ctx := context.Background()

	_, err := h.session.StartMode(ctx, models.ModePractice)
	require.NoError(t, err)

	update, err := h.session.Reset(ctx)
	require.NoError(t, err)
	require.Len(t, update.Notices, 1)
	assert.Nil(t, h.session.Current())
	assert.Zero(t, h.session.Progress().XP)
	assert.Equal(t, h.store.Default(), h.store.Load(ctx))
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, setup{
		words: wordRange(1, 10, flat(5)),
		seed: func(p *models.UserProgress) {
			p.XP = 1600
			p.LeagueXP = 1600
			p.League = models.LeagueGold
			p.WeakWords = []int64{2, 3, 404}
		},
	})

	snap := h.session.Snapshot()
	assert.Equal(t, 17, snap.Level)
	assert.Equal(t, 1, snap.CrownLevel)
	assert.Equal(t, models.LeaguePlatinum, snap.NextLeague)
	assert.Equal(t, int64(3000), snap.NextLeagueXP)
	assert.Equal(t, 2, snap.WeakCount)
	assert.False(t, snap.ChestAvailable)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{err: progression.ErrChapterNotFound, expected: "❌ Bölüm bulunamadı!"},
		{err: progression.ErrNoTestWords, expected: "⚠️ Bu seviye için yeterli kelime bulunamadı!"},
		{err: ErrNotPremium, expected: "⭐ Bu özellik Premium üyeler için!"},
		{err: ErrChestAlreadyOpened, expected: "📦 Bugün zaten sandığı açtınız!"},
		{err: errors.New("что-то"), expected: msgGeneric},
		{err: nil, expected: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Message(tt.err))
	}
}
