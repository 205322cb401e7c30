package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kelime/internal/config"
	"kelime/internal/scheduling"
	"kelime/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withXP(xp int64) func(p *models.UserProgress) {
	return func(p *models.UserProgress) { p.XP = xp }
}

func contextWords(from, to int64) []*models.Word {
	words := wordRange(from, to, flat(3))
	for _, w := range words {
		w.ExampleText = fmt.Sprintf("آية %d", w.ID)
		w.Translation = fmt.Sprintf("meal %d", w.ID)
	}
	return words
}

func shortChallenges(r *config.Rules) {
	r.Challenges = []models.Challenge{
		{ID: 1, Name: "Hızlı Öğrenci", TimeLimit: 10 * time.Minute, Words: 3, XP: 100, Gems: 10},
		{ID: 2, Name: "Mükemmellik", Target: 3, XP: 150, Gems: 15},
	}
}

func TestChallengeAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("без активности задачи закрыты", func(t *testing.T) {
		h := newHarness(t, setup{words: wordRange(1, 30, flat(5))})

		_, err := h.session.StartChallenge(ctx, 1)
		assert.ErrorIs(t, err, ErrChallengeLocked)
		assert.Equal(t, "🔒 Önceki görevi tamamlamalısınız!", Message(err))
		for _, c := range h.session.Challenges() {
			assert.False(t, c.Available, "задача %d", c.Challenge.ID)
		}
	})

	t.Run("первая задача открыта, следующая ждет выполнения", func(t *testing.T) {
		h := newHarness(t, setup{words: wordRange(1, 30, flat(5)), seed: withXP(10)})

		statuses := h.session.Challenges()
		require.Len(t, statuses, 3)
		assert.True(t, statuses[0].Available)
		assert.False(t, statuses[1].Available)

		_, err := h.session.StartChallenge(ctx, 2)
		assert.ErrorIs(t, err, ErrChallengeLocked)

		_, err = h.session.StartChallenge(ctx, 42)
		assert.ErrorIs(t, err, ErrChallengeNotFound)
	})
}

func TestTimedChallengeSucceeds(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 30, flat(5)), seed: withXP(10), rules: shortChallenges})
	ctx := context.Background()

	step, err := h.session.StartChallenge(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, step.Question)
	assert.Equal(t, models.ModeChallenge, step.Question.Mode)

	statuses := h.session.Challenges()
	require.NotNil(t, statuses[0].Deadline)
	assert.Equal(t, testNow.Add(10*time.Minute), *statuses[0].Deadline)

	var last *FeedbackOutcome
	for i := 0; i < 3; i++ {
		if i > 0 {
			require.NotNil(t, h.advance(t).Question)
		}
		last = h.answer(t, true)
	}

	assert.True(t, last.Redirect)
	assert.Equal(t, int64(110), last.XPAwarded)
	assert.Equal(t, 1, countEvents(last.Events, models.EventChallengeCompleted))
	assert.Nil(t, h.session.Current())

	p := h.session.Progress()
	cp := p.Challenges[1]
	require.NotNil(t, cp)
	assert.True(t, cp.Completed)
	assert.False(t, cp.Active)
	assert.Equal(t, 3, cp.Correct)
	assert.Equal(t, int64(10+30+100), p.XP)
	assert.Equal(t, 10, p.Gems)

	_, err = h.session.StartChallenge(ctx, 1)
	assert.ErrorIs(t, err, ErrChallengeCompleted)
	assert.True(t, h.session.Challenges()[1].Available)
}

func TestTargetChallenge(t *testing.T) {
	tests := []struct {
		name      string
		answers   []bool
		completed bool
		gems      int
		event     models.EventKind
	}{
		{name: "все ответы верные", answers: []bool{true, true, true}, completed: true, gems: 15, event: models.EventChallengeCompleted},
		{name: "одна ошибка проваливает задачу", answers: []bool{true, false, true}, event: models.EventChallengeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{
				words: wordRange(1, 30, flat(5)),
				rules: shortChallenges,
				seed: func(p *models.UserProgress) {
					p.XP = 10
					p.Challenges[1] = &models.ChallengeProgress{Completed: true, Correct: 3, Total: 3}
				},
			})
			ctx := context.Background()

			_, err := h.session.StartChallenge(ctx, 2)
			require.NoError(t, err)

			var last *FeedbackOutcome
			for i, correct := range tt.answers {
				if i > 0 {
					require.NotNil(t, h.advance(t).Question)
				}
				last = h.answer(t, correct)
				if i < len(tt.answers)-1 {
					assert.False(t, last.Redirect)
				}
			}

			assert.True(t, last.Redirect)
			assert.Equal(t, 1, countEvents(last.Events, tt.event))

			cp := h.session.Progress().Challenges[2]
			assert.Equal(t, tt.completed, cp.Completed)
			assert.False(t, cp.Active)
			assert.Equal(t, 3, cp.Total)
			assert.Equal(t, tt.gems, h.session.Progress().Gems)

			if !tt.completed {
				require.NotEmpty(t, last.Notices)
				assert.Equal(t, msgChallengeFailed, last.Notices[len(last.Notices)-1].Message)

				_, err := h.session.StartChallenge(ctx, 2)
				require.NoError(t, err, "проваленную задачу можно начать заново")
				cp := h.session.Progress().Challenges[2]
				assert.True(t, cp.Active)
				assert.Zero(t, cp.Total)
			}
		})
	}
}

func TestChallengeExpires(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 30, flat(5)), seed: withXP(10), rules: shortChallenges})
	ctx := context.Background()

	_, err := h.session.StartChallenge(ctx, 1)
	require.NoError(t, err)

	h.clock.Advance(9 * time.Minute)
	assert.Nil(t, h.session.ExpireChallenges(ctx))
	assert.NotNil(t, h.session.Current())

	h.clock.Advance(time.Minute)
	update := h.session.ExpireChallenges(ctx)
	require.NotNil(t, update)
	assert.Equal(t, 1, countEvents(update.Events, models.EventChallengeFailed))
	require.Len(t, update.Notices, 1)
	assert.Equal(t, msgChallengeTimeout, update.Notices[0].Message)
	assert.Nil(t, h.session.Current(), "сессия задачи завершается")

	saved := h.store.Load(ctx)
	require.Contains(t, saved.Challenges, 1)
	assert.False(t, saved.Challenges[1].Active)
	assert.False(t, saved.Challenges[1].Completed)

	assert.Nil(t, h.session.ExpireChallenges(ctx), "повторно не срабатывает")
}

func TestChallengeAnswerAfterDeadlineDoesNotCount(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 30, flat(5)), seed: withXP(10), rules: shortChallenges})
	ctx := context.Background()

	_, err := h.session.StartChallenge(ctx, 1)
	require.NoError(t, err)
	h.answer(t, true)
	require.NotNil(t, h.advance(t).Question)

	h.clock.Advance(11 * time.Minute)
	out := h.answer(t, true)
	assert.True(t, out.Redirect)
	assert.Equal(t, 1, countEvents(out.Events, models.EventChallengeFailed))

	cp := h.session.Progress().Challenges[1]
	assert.Equal(t, 1, cp.Total)
	assert.False(t, cp.Active)
	assert.Zero(t, h.session.Progress().Gems)
}

func TestChallengeResumeKeepsStartTime(t *testing.T) {
	h := newHarness(t, setup{words: wordRange(1, 30, flat(5)), seed: withXP(10), rules: shortChallenges})
	ctx := context.Background()

	_, err := h.session.StartChallenge(ctx, 1)
	require.NoError(t, err)
	h.answer(t, true)
	h.session.EndSession()

	h.clock.Advance(2 * time.Minute)
	_, err = h.session.StartChallenge(ctx, 1)
	require.NoError(t, err)

	cp := h.session.Progress().Challenges[1]
	require.NotNil(t, cp.StartTime)
	assert.True(t, testNow.Equal(*cp.StartTime))
	assert.Equal(t, 1, cp.Correct)
	assert.Equal(t, 1, cp.Total)
}

func shortStories(r *config.Rules) {
	r.Stories = []models.Story{
		{ID: 1, Title: "İlk Gün", Words: 3, XP: 50},
		{ID: 2, Title: "Pazar Günü", Words: 3, XP: 50},
	}
}

func TestStoryFlow(t *testing.T) {
	h := newHarness(t, setup{words: contextWords(1, 10), seed: withXP(10), rules: shortStories})
	ctx := context.Background()

	step, err := h.session.StartStory(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, step.Question)
	assert.Equal(t, models.ModeStory, step.Question.Mode)
	assert.Equal(t, models.QuestionContextual, step.Question.Kind)
	assert.Equal(t, 1, step.Question.Index)
	assert.Equal(t, 3, step.Question.Total)

	var last *FeedbackOutcome
	var learned []int64
	for i, correct := range []bool{true, false, true} {
		if i > 0 {
			require.NotNil(t, h.advance(t).Question)
		}
		if correct {
			learned = append(learned, h.session.Current().Word.ID)
		}
		last = h.answer(t, correct)
		assert.True(t, last.AutoAdvance)
		if i < 2 {
			assert.Zero(t, last.XPAwarded, "в истории опыт за ответ не начисляется")
		}
	}

	assert.True(t, last.Redirect)
	assert.Equal(t, int64(50), last.XPAwarded)
	assert.Equal(t, 1, countEvents(last.Events, models.EventStoryCompleted))

	p := h.session.Progress()
	assert.Equal(t, int64(60), p.XP)
	assert.Equal(t, 5, p.Hearts, "в истории сердца не тратятся")
	assert.Len(t, p.Words, 3, "интервальное повторение обновляется")
	assert.Zero(t, h.session.Snapshot().DailyProgress)

	sp := p.Stories[1]
	require.NotNil(t, sp)
	assert.Equal(t, 3, sp.Completed)
	assert.ElementsMatch(t, learned, sp.Words)

	statuses := h.session.Stories()
	assert.True(t, statuses[0].Completed)
	assert.True(t, statuses[1].Available)
	assert.True(t, h.advance(t).Done)
}

func TestStoryRewardOnlyOnce(t *testing.T) {
	h := newHarness(t, setup{
		words: contextWords(1, 10),
		rules: shortStories,
		seed: func(p *models.UserProgress) {
			p.XP = 10
			p.Stories[1] = &models.StoryProgress{Completed: 3, Words: []int64{1, 2, 3}}
		},
	})
	ctx := context.Background()

	_, err := h.session.StartStory(ctx, 1)
	require.NoError(t, err)

	var last *FeedbackOutcome
	for i := 0; i < 3; i++ {
		if i > 0 {
			require.NotNil(t, h.advance(t).Question)
		}
		last = h.answer(t, true)
	}

	assert.True(t, last.Redirect)
	assert.Zero(t, last.XPAwarded)
	require.NotEmpty(t, last.Notices)
	assert.Equal(t, msgStoryRepeated, last.Notices[len(last.Notices)-1].Message)
	assert.Equal(t, int64(10), h.session.Progress().XP)
}

func TestStartStoryErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		words []*models.Word
		seed  func(p *models.UserProgress)
		id    int
		err   error
	}{
		{name: "без активности", words: contextWords(1, 5), id: 1, err: ErrStoryLocked},
		{name: "предыдущая не прочитана", words: contextWords(1, 5), seed: withXP(10), id: 2, err: ErrStoryLocked},
		{name: "нет такой истории", words: contextWords(1, 5), seed: withXP(10), id: 9, err: ErrStoryNotFound},
		{name: "нет слов с контекстом", words: wordRange(1, 5, flat(3)), seed: withXP(10), id: 1, err: scheduling.ErrNoWordsAvailable},
		{
			name:  "нет сердец",
			words: contextWords(1, 5),
			seed: func(p *models.UserProgress) {
				p.XP = 10
				p.Hearts = 0
				now := testNow
				p.HeartsRefillTime = &now
			},
			id:  1,
			err: ErrNoHearts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, setup{words: tt.words, seed: tt.seed, rules: shortStories})
			_, err := h.session.StartStory(ctx, tt.id)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, h.session.Current())
		})
	}
}
