package session

import (
	"context"
	"fmt"

	"kelime/internal/mastery"
	"kelime/internal/scheduling"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

// SubmitOption отвечает вариантом текущего вопроса
func (s *Session) SubmitOption(ctx context.Context, index int) (*FeedbackOutcome, error) {
	q := s.Current()
	if q == nil || index < 0 || index >= len(q.Options) {
		return nil, ErrNoActiveQuestion
	}
	return s.SubmitAnswer(ctx, q.Word.ID, q.Options[index].Correct)
}

// SubmitAnswer применяет ответ на текущий вопрос
func (s *Session) SubmitAnswer(ctx context.Context, wordID int64, correct bool) (*FeedbackOutcome, error) {
	r := s.run
	if r == nil || r.current == nil || r.answered {
		return nil, ErrNoActiveQuestion
	}
	q := r.current
	if q.Word.ID != wordID {
		return nil, fmt.Errorf("%w: ожидалось слово %d, получено %d", ErrNoActiveQuestion, q.Word.ID, wordID)
	}
	r.answered = true

	p := s.progress
	testOut := r.mode == models.ModeTestOut
	story := r.story != nil
	f := &feed{}
	out := &FeedbackOutcome{
		Correct:       correct,
		CorrectAnswer: scheduling.CorrectAnswer(q.Word, q.Kind),
	}

	s.touchDay(f)

	result, err := s.tracker.Apply(ctx, p, q.Word, correct, mastery.Options{TrackWeakness: !testOut})
	f.persistErr(err)
	if result != nil {
		out.Stage = result.Stage
		if result.StageAdvanced {
			out.StageAdvanced = true
			f.event(models.EventStageAdvanced, wordID, string(result.Stage))
		}
	}
	s.recorder.RecordAnswer(string(r.mode), correct)

	if correct {
		r.correct++
	} else {
		r.wrong++
	}

	// в истории нет опыта за ответ и потери сердец
	switch {
	case testOut, story:
	case correct:
		out.XPAwarded += s.addXP(ctx, s.rules.XPPerCorrect, "answer", f)
	default:
		s.loseHeart(f)
	}

	if correct && r.mode == models.ModeChapter && r.chapter != nil {
		_, err := s.gate.RecordCorrect(ctx, p, r.chapter.ID, wordID)
		f.persistErr(err)
	}

	if correct && story {
		s.recordStoryWord(wordID)
	}
	if !story {
		out.XPAwarded += s.countDaily(ctx, f)
	}

	if r.challenge != nil {
		xp, done := s.countChallenge(ctx, correct, f)
		out.XPAwarded += xp
		out.Redirect = done
	}

	switch {
	case out.Redirect:
	case testOut:
		out.AutoAdvance = true
		r.test.index++
		if r.test.index >= len(r.test.words) {
			out.TestResult = s.finishTest(ctx, f)
			out.XPAwarded += out.TestResult.XP
			out.Redirect = true
		}
	case story:
		out.AutoAdvance = true
		r.story.index++
		if r.story.index >= len(r.story.words) {
			out.XPAwarded += s.finishStory(ctx, f)
			out.Redirect = true
		}
	case !s.canPlay():
		f.event(models.EventHeartsDepleted, 0, "")
		f.notice(models.SeverityWarning, msgNoHearts)
		out.Redirect = true
		s.end()
	}

	s.logger.Debug("ответ принят",
		zap.Int64("word_id", wordID),
		zap.Bool("correct", correct),
		zap.String("mode", string(r.mode)),
		zap.Int("hearts", p.Hearts))

	s.finish(ctx, f)
	out.Hearts = p.Hearts
	out.Update = f.update()
	return out, nil
}

// finishTest начисляет награду за тест по проценту правильных ответов
func (s *Session) finishTest(ctx context.Context, f *feed) *TestOutcome {
	t := s.run.test
	result := s.gate.ScoreTest(t.test, s.run.correct, len(t.words))
	outcome := &TestOutcome{TestResult: result, Duration: s.clock.Now().Sub(t.startedAt)}

	s.progress.Gems += result.Gems
	result.XP = s.addXP(ctx, result.XP, "test", f)
	outcome.XP = result.XP

	f.event(models.EventTestCompleted, int64(result.Percent), t.test.Name)
	f.notice(models.SeveritySuccess, msgTestDone, result.Correct, result.Total, result.Percent, result.XP, result.Gems)

	s.logger.Info("тест завершен",
		zap.Int("test_id", t.test.ID),
		zap.Int("correct", result.Correct),
		zap.Int("total", result.Total),
		zap.Int("percent", result.Percent))

	s.end()
	return outcome
}
