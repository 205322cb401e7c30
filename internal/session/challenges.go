package session

import (
	"context"
	"fmt"
	"time"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

// ChallengeStatus задача с текущим состоянием
type ChallengeStatus struct {
	Challenge models.Challenge
	Progress  models.ChallengeProgress
	Available bool
	// Deadline заполнен для активной задачи на время
	Deadline *time.Time
}

// Challenges задачи в порядке правил
func (s *Session) Challenges() []ChallengeStatus {
	statuses := make([]ChallengeStatus, 0, len(s.rules.Challenges))
	for i, c := range s.rules.Challenges {
		status := ChallengeStatus{Challenge: c, Available: s.challengeOpen(i)}
		if cp := s.progress.Challenges[c.ID]; cp != nil {
			status.Progress = *cp
			if deadline, ok := cp.Deadline(c.TimeLimit); ok {
				status.Deadline = &deadline
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// challengeOpen первая задача открывается после любой активности,
// следующие после выполнения предыдущей
func (s *Session) challengeOpen(index int) bool {
	c := s.rules.Challenges[index]
	if cp := s.progress.Challenges[c.ID]; cp != nil && (cp.Active || cp.Completed) {
		return true
	}
	if index == 0 {
		return s.progress.HasRealProgress()
	}
	prev := s.progress.Challenges[s.rules.Challenges[index-1].ID]
	return prev != nil && prev.Completed
}

// StartChallenge начинает или продолжает задачу. Вопросы подбираются как в смешанном режиме.
func (s *Session) StartChallenge(ctx context.Context, id int) (*Step, error) {
	index := -1
	for i, c := range s.rules.Challenges {
		if c.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrChallengeNotFound, id)
	}
	c := s.rules.Challenges[index]

	if cp := s.progress.Challenges[c.ID]; cp != nil && cp.Completed {
		return nil, fmt.Errorf("%w: %d", ErrChallengeCompleted, id)
	}
	if !s.challengeOpen(index) {
		return nil, fmt.Errorf("%w: %d", ErrChallengeLocked, id)
	}

	f := &feed{}
	s.refillHearts(f)
	s.expireChallenges(ctx, f)
	if !s.canPlay() {
		s.finish(ctx, f)
		return nil, ErrNoHearts
	}

	if s.progress.Challenges == nil {
		s.progress.Challenges = make(map[int]*models.ChallengeProgress)
	}
	now := s.clock.Now()
	cp := s.progress.Challenges[c.ID]
	switch {
	case cp == nil || !cp.Active:
		cp = &models.ChallengeProgress{Active: true, StartTime: &now}
		s.progress.Challenges[c.ID] = cp
	case cp.StartTime == nil:
		cp.StartTime = &now
	}

	s.begin(models.ModeChallenge, nil, nil)
	s.run.challenge = &c
	s.logger.Info("задача начата",
		zap.String("session_id", s.run.id),
		zap.Int("challenge_id", c.ID),
		zap.Int("correct", cp.Correct),
		zap.Int("total", cp.Total))

	step := s.next(ctx, f)
	s.finish(ctx, f)
	step.Update = f.update()
	return step, nil
}

// ExpireChallenges завершает неудачей задачи на время с истекшим сроком.
// Возвращает nil, если ничего не изменилось.
func (s *Session) ExpireChallenges(ctx context.Context) *Update {
	f := &feed{}
	if s.expireChallenges(ctx, f) == 0 {
		return nil
	}
	s.finish(ctx, f)
	u := f.update()
	return &u
}

func (s *Session) expireChallenges(ctx context.Context, f *feed) int {
	now := s.clock.Now()
	expired := 0
	for _, c := range s.rules.Challenges {
		cp := s.progress.Challenges[c.ID]
		if cp == nil {
			continue
		}
		deadline, ok := cp.Deadline(c.TimeLimit)
		if !ok || now.Before(deadline) {
			continue
		}
		s.settleChallenge(ctx, c, cp, false, f)
		expired++
		if s.run != nil && s.run.challenge != nil && s.run.challenge.ID == c.ID {
			s.end()
		}
	}
	return expired
}

// countChallenge учитывает ответ в активной задаче. done означает, что задача закончилась.
func (s *Session) countChallenge(ctx context.Context, correct bool, f *feed) (xp int64, done bool) {
	c := s.run.challenge
	cp := s.progress.Challenges[c.ID]
	if cp == nil || !cp.Active {
		s.run.challenge = nil
		return 0, false
	}
	if deadline, ok := cp.Deadline(c.TimeLimit); ok && !s.clock.Now().Before(deadline) {
		s.expireChallenges(ctx, f)
		return 0, true
	}

	cp.Total++
	if correct {
		cp.Correct++
	}

	switch {
	case c.Timed() && cp.Correct >= c.Words:
		xp = s.settleChallenge(ctx, *c, cp, true, f)
	case c.Target > 0 && cp.Total >= c.Target:
		xp = s.settleChallenge(ctx, *c, cp, cp.Correct == cp.Total, f)
	default:
		return 0, false
	}
	s.end()
	return xp, true
}

// settleChallenge закрывает задачу и выдает награду за успех
func (s *Session) settleChallenge(ctx context.Context, c models.Challenge, cp *models.ChallengeProgress, success bool, f *feed) int64 {
	cp.Active = false
	cp.Completed = success

	s.logger.Info("задача завершена",
		zap.Int("challenge_id", c.ID),
		zap.Bool("success", success),
		zap.Int("correct", cp.Correct),
		zap.Int("total", cp.Total))

	if !success {
		f.event(models.EventChallengeFailed, int64(c.ID), c.Name)
		if c.Timed() {
			f.notice(models.SeverityWarning, msgChallengeTimeout)
		} else {
			f.notice(models.SeverityWarning, msgChallengeFailed)
		}
		return 0
	}

	s.progress.Gems += c.Gems
	xp := s.addXP(ctx, c.XP, "challenge", f)
	f.event(models.EventChallengeCompleted, int64(c.ID), c.Name)
	f.notice(models.SeveritySuccess, msgChallengeDone, xp, c.Gems)
	return xp
}
