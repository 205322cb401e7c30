package progression

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"kelime/internal/catalog"
	"kelime/internal/config"
	"kelime/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSaver struct {
	saves int
	err   error
}

func (s *recordingSaver) Save(ctx context.Context, p *models.UserProgress) error {
	s.saves++
	return s.err
}

func words(from, to int64, difficulty float64) []*models.Word {
	out := make([]*models.Word, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, &models.Word{ID: id, ArabicForm: "ك", Meaning: "m", Difficulty: difficulty})
	}
	return out
}

func testChapters() []*models.Chapter {
	return []*models.Chapter{
		{ID: 1, Name: "Bölüm 1", Difficulty: 1, Words: words(1, 3, 1)},
		{ID: 2, Name: "Bölüm 2", Difficulty: 2, Words: words(4, 6, 3)},
		{ID: 3, Name: "Bölüm 3", Difficulty: 3, Words: words(7, 8, 5)},
	}
}

func newGate(saver Saver, all []*models.Word) *Gate {
	cat := catalog.New(all, zap.NewNop())
	return NewGate(testChapters(), cat, saver, rand.New(rand.NewSource(1)), config.DefaultRules(), zap.NewNop())
}

func TestChapterStates(t *testing.T) {
	gate := newGate(&recordingSaver{}, nil)

	tests := []struct {
		name   string
		setup  func(p *models.UserProgress)
		states []models.ChapterState
	}{
		{
			name:   "новый пользователь",
			setup:  func(p *models.UserProgress) {},
			states: []models.ChapterState{models.ChapterUnlockable, models.ChapterLocked, models.ChapterLocked},
		},
		{
			name: "первая глава начата",
			setup: func(p *models.UserProgress) {
				p.XP = 10
				p.Chapters[1] = &models.ChapterProgress{Completed: 2, Total: 3, LearnedWords: []int64{1, 2}}
			},
			states: []models.ChapterState{models.ChapterInProgress, models.ChapterLocked, models.ChapterLocked},
		},
		{
			name: "первая глава пройдена",
			setup: func(p *models.UserProgress) {
				p.XP = 30
				p.Chapters[1] = &models.ChapterProgress{Completed: 3, Total: 3, LearnedWords: []int64{1, 2, 3}}
			},
			states: []models.ChapterState{models.ChapterCompleted, models.ChapterUnlockable, models.ChapterLocked},
		},
		{
			name: "чужие слова не открывают следующую главу",
			setup: func(p *models.UserProgress) {
				p.XP = 30
				p.Chapters[1] = &models.ChapterProgress{Completed: 3, Total: 3, LearnedWords: []int64{1, 2, 7}}
			},
			states: []models.ChapterState{models.ChapterInProgress, models.ChapterLocked, models.ChapterLocked},
		},
		{
			name: "без активности глава не завершается",
			setup: func(p *models.UserProgress) {
				p.Chapters[1] = &models.ChapterProgress{Completed: 3, Total: 3, LearnedWords: []int64{1, 2, 3}}
			},
			states: []models.ChapterState{models.ChapterInProgress, models.ChapterUnlockable, models.ChapterLocked},
		},
		{
			name: "дневной счетчик без опыта главу не завершает",
			setup: func(p *models.UserProgress) {
				p.DailyProgress = 3
				p.Chapters[1] = &models.ChapterProgress{Completed: 3, Total: 3, LearnedWords: []int64{1, 2, 3}}
			},
			states: []models.ChapterState{models.ChapterInProgress, models.ChapterUnlockable, models.ChapterLocked},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.NewUserProgress(20, 5)
			tt.setup(p)

			statuses := gate.States(p)
			require.Len(t, statuses, len(tt.states))
			for i, status := range statuses {
				assert.Equal(t, tt.states[i], status.State, "глава %d", status.Chapter.ID)
			}
		})
	}
}

func TestNextChapterNeverUnlocksBeforePreviousIsLearned(t *testing.T) {
	gate := newGate(&recordingSaver{}, nil)
	p := models.NewUserProgress(20, 5)
	p.XP = 500
	rnd := rand.New(rand.NewSource(3))

	for step := 0; step < 200; step++ {
		ch := gate.Chapters()[rnd.Intn(3)]
		w := ch.Words[rnd.Intn(len(ch.Words))]
		cp := p.Chapters[ch.ID]
		if cp == nil {
			cp = &models.ChapterProgress{}
			p.Chapters[ch.ID] = cp
		}
		// выученные слова из чужой главы не должны засчитываться
		cp.AddLearned(w.ID + int64(rnd.Intn(2))*3)

		for _, c := range gate.Chapters()[1:] {
			prev, _ := gate.Chapter(c.ID - 1)
			prevProgress := p.Chapters[prev.ID]
			valid := 0
			if prevProgress != nil {
				valid = prevProgress.ValidLearned(prev.WordSet())
			}
			if valid < len(prev.Words) {
				require.False(t, gate.IsUnlocked(p, c.ID), "глава %d открыта при %d/%d", c.ID, valid, len(prev.Words))
			}
		}
	}
}

func TestStartChapter(t *testing.T) {
	saver := &recordingSaver{}
	gate := newGate(saver, nil)
	p := models.NewUserProgress(20, 5)

	_, err := gate.StartChapter(context.Background(), p, 9)
	assert.ErrorIs(t, err, ErrChapterNotFound)

	_, err = gate.StartChapter(context.Background(), p, 2)
	assert.ErrorIs(t, err, ErrChapterLocked)
	assert.Nil(t, p.Chapters[2])

	ch, err := gate.StartChapter(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ID)
	require.NotNil(t, p.Chapters[1])
	assert.Equal(t, 3, p.Chapters[1].Total)
	assert.Equal(t, 1, saver.saves)

	_, err = gate.StartChapter(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, saver.saves, "повторный старт не перезаписывает прогресс")
}

func TestRecordCorrect(t *testing.T) {
	saver := &recordingSaver{}
	gate := newGate(saver, nil)
	p := models.NewUserProgress(20, 5)
	p.Chapters[1] = &models.ChapterProgress{Completed: 5, Total: 9, LearnedWords: []int64{}}

	added, err := gate.RecordCorrect(context.Background(), p, 1, 2)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, p.Chapters[1].Completed)
	assert.Equal(t, 3, p.Chapters[1].Total)

	added, err = gate.RecordCorrect(context.Background(), p, 1, 2)
	require.NoError(t, err)
	assert.False(t, added)

	added, err = gate.RecordCorrect(context.Background(), p, 1, 7)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []int64{2}, p.Chapters[1].LearnedWords)
	assert.Equal(t, 1, saver.saves)
}

func TestSyncChapters(t *testing.T) {
	gate := newGate(&recordingSaver{}, nil)
	p := models.NewUserProgress(20, 5)
	p.Chapters[2] = &models.ChapterProgress{Completed: 4, Total: 10, LearnedWords: []int64{4, 5, 1, 99}}

	assert.True(t, gate.SyncChapters(p))
	assert.Equal(t, 2, p.Chapters[2].Completed)
	assert.Equal(t, 3, p.Chapters[2].Total)
	assert.False(t, gate.SyncChapters(p))
}

func TestComplete(t *testing.T) {
	saver := &recordingSaver{}
	gate := newGate(saver, nil)
	p := models.NewUserProgress(20, 5)
	p.Chapters[1] = &models.ChapterProgress{Completed: 2, Total: 3, LearnedWords: []int64{1, 2}}
	p.XP = 20

	_, err := gate.Complete(context.Background(), p, 1)
	assert.ErrorIs(t, err, ErrChapterIncomplete)

	p.Chapters[1].AddLearned(3)
	completion, err := gate.Complete(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), completion.XP)
	assert.Equal(t, 10, completion.Gems)
	assert.Equal(t, 10, p.Gems)
	assert.True(t, p.Chapters[1].Rewarded)
	assert.Equal(t, 3, p.Chapters[1].Completed)

	_, err = gate.Complete(context.Background(), p, 1)
	assert.ErrorIs(t, err, ErrAlreadyRewarded)
	assert.Equal(t, 10, p.Gems)
}

func TestCompleteRequiresXPOrWords(t *testing.T) {
	saver := &recordingSaver{}
	gate := newGate(saver, nil)
	p := models.NewUserProgress(20, 5)
	p.DailyProgress = 3
	p.Chapters[1] = &models.ChapterProgress{Completed: 3, Total: 3, LearnedWords: []int64{1, 2, 3}}

	_, err := gate.Complete(context.Background(), p, 1)
	assert.ErrorIs(t, err, ErrChapterIncomplete)
	assert.Equal(t, 0, p.Gems)
	assert.False(t, p.Chapters[1].Rewarded)
	assert.Zero(t, saver.saves)

	p.Words[1] = models.NewWordProgress(1)
	_, err = gate.Complete(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Gems)
}

func TestCompleteReportsSaveError(t *testing.T) {
	saveErr := errors.New("нет места")
	gate := newGate(&recordingSaver{err: saveErr}, nil)
	p := models.NewUserProgress(20, 5)
	p.XP = 20
	p.Chapters[1] = &models.ChapterProgress{Completed: 3, Total: 3, LearnedWords: []int64{1, 2, 3}}

	completion, err := gate.Complete(context.Background(), p, 1)
	assert.ErrorIs(t, err, saveErr)
	require.NotNil(t, completion)
	assert.Equal(t, 10, p.Gems)
}
