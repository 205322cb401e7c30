package session

import (
	"context"
	"fmt"

	"kelime/internal/scheduling"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

type storyRun struct {
	story models.Story
	words []*models.Word
	index int
}

// StoryStatus история с прогрессом
type StoryStatus struct {
	Story     models.Story
	Learned   int
	Completed bool
	Available bool
}

// Stories истории в порядке правил
func (s *Session) Stories() []StoryStatus {
	statuses := make([]StoryStatus, 0, len(s.rules.Stories))
	for i, st := range s.rules.Stories {
		status := StoryStatus{Story: st, Available: s.storyOpen(i)}
		if sp := s.progress.Stories[st.ID]; sp != nil {
			status.Learned = min(sp.Completed, st.Words)
			status.Completed = sp.Completed >= st.Words
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// storyOpen первая история открывается после любой активности,
// следующие после прочтения предыдущей
func (s *Session) storyOpen(index int) bool {
	st := s.rules.Stories[index]
	if s.progress.Stories[st.ID] != nil {
		return true
	}
	if index == 0 {
		return s.progress.HasRealProgress()
	}
	prev := s.rules.Stories[index-1]
	sp := s.progress.Stories[prev.ID]
	return sp != nil && sp.Completed >= prev.Words
}

// StartStory начинает историю из случайных слов с контекстом
func (s *Session) StartStory(ctx context.Context, id int) (*Step, error) {
	index := -1
	for i, st := range s.rules.Stories {
		if st.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrStoryNotFound, id)
	}
	if !s.storyOpen(index) {
		return nil, fmt.Errorf("%w: %d", ErrStoryLocked, id)
	}
	st := s.rules.Stories[index]

	f := &feed{}
	s.refillHearts(f)
	if !s.canPlay() {
		s.finish(ctx, f)
		return nil, ErrNoHearts
	}

	words := s.catalog.WithContext()
	if len(words) == 0 {
		s.finish(ctx, f)
		return nil, scheduling.ErrNoWordsAvailable
	}
	s.rnd.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })
	if len(words) > st.Words {
		words = words[:st.Words]
	}

	if s.progress.Stories == nil {
		s.progress.Stories = make(map[int]*models.StoryProgress)
	}
	if s.progress.Stories[st.ID] == nil {
		s.progress.Stories[st.ID] = &models.StoryProgress{Words: []int64{}}
	}

	s.begin(models.ModeStory, nil, nil)
	s.run.story = &storyRun{story: st, words: words}
	s.logger.Info("история начата",
		zap.String("session_id", s.run.id),
		zap.Int("story_id", st.ID),
		zap.Int("words", len(words)))

	step := s.next(ctx, f)
	s.finish(ctx, f)
	step.Update = f.update()
	return step, nil
}

func (s *Session) nextStoryQuestion() *Step {
	r := s.run.story
	if r.index >= len(r.words) {
		s.end()
		return &Step{Done: true}
	}
	return s.present(r.words[r.index], models.QuestionContextual, nil, r.index+1, len(r.words))
}

// recordStoryWord отмечает правильно отвеченное слово истории
func (s *Session) recordStoryWord(wordID int64) {
	sp := s.progress.Stories[s.run.story.story.ID]
	if sp == nil {
		sp = &models.StoryProgress{Words: []int64{}}
		s.progress.Stories[s.run.story.story.ID] = sp
	}
	sp.AddWord(wordID)
}

// finishStory отмечает историю прочитанной. Опыт выдается только за первое прочтение.
func (s *Session) finishStory(ctx context.Context, f *feed) int64 {
	st := s.run.story.story
	sp := s.progress.Stories[st.ID]
	if sp == nil {
		sp = &models.StoryProgress{Words: []int64{}}
		s.progress.Stories[st.ID] = sp
	}
	first := sp.Completed < st.Words
	sp.Completed = max(sp.Completed, st.Words)

	var xp int64
	if first {
		xp = s.addXP(ctx, st.XP, "story", f)
		f.notice(models.SeveritySuccess, msgStoryDone, xp)
	} else {
		f.notice(models.SeveritySuccess, msgStoryRepeated)
	}
	f.event(models.EventStoryCompleted, int64(st.ID), st.Title)

	s.logger.Info("история завершена",
		zap.Int("story_id", st.ID),
		zap.Bool("first", first),
		zap.Int("correct", s.run.correct),
		zap.Int("wrong", s.run.wrong))

	s.end()
	return xp
}
