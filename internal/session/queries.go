package session

import (
	"context"
	"errors"
	"time"

	"kelime/internal/mastery"
	"kelime/internal/progression"
	"kelime/pkg/models"
)

// Snapshot сводка прогресса для главного экрана
type Snapshot struct {
	XP             int64
	Level          int
	CrownLevel     int
	League         models.League
	LeagueXP       int64
	NextLeague     models.League
	NextLeagueXP   int64
	Streak         int
	LastStudyDate  string
	Notifications  bool
	Hearts         int
	MaxHearts      int
	HeartsRefillAt *time.Time
	Gems           int
	IsPremium      bool
	DailyProgress  int
	DailyGoal      int
	WordsStudied   int
	DueCount       int
	WeakCount      int
	Badges         []string
	ChestAvailable bool
	Mode           models.Mode
	SessionCorrect int
	SessionWrong   int
}

// Snapshot текущая сводка
func (s *Session) Snapshot() Snapshot {
	p := s.progress
	now := s.clock.Now()

	snap := Snapshot{
		XP:             p.XP,
		Level:          p.Level(),
		CrownLevel:     p.CrownLevel(),
		League:         p.League,
		LeagueXP:       p.LeagueXP,
		Streak:         p.Streak,
		LastStudyDate:  p.LastStudyDate,
		Notifications:  p.Notifications,
		Hearts:         p.Hearts,
		MaxHearts:      p.MaxHearts,
		Gems:           p.Gems,
		IsPremium:      p.IsPremium,
		DailyProgress:  s.dailyProgress(),
		DailyGoal:      p.DailyGoal,
		WordsStudied:   len(p.Words),
		DueCount:       mastery.DueCount(p, s.catalog, now),
		WeakCount:      len(mastery.WeakWords(p, s.catalog)),
		Badges:         append([]string(nil), p.Badges...),
		ChestAvailable: s.DailyChestAvailable(),
	}
	if p.HeartsRefillTime != nil && !p.IsPremium {
		at := p.HeartsRefillTime.Add(s.rules.HeartRefillInterval())
		snap.HeartsRefillAt = &at
	}
	if next, threshold, ok := s.nextLeague(p.League); ok {
		snap.NextLeague, snap.NextLeagueXP = next, threshold
	}
	if s.run != nil {
		snap.Mode = s.run.mode
		snap.SessionCorrect = s.run.correct
		snap.SessionWrong = s.run.wrong
	}
	return snap
}

// dailyProgress счетчик дневной цели с учетом смены дня
func (s *Session) dailyProgress() int {
	p := s.progress
	today := models.FormatDate(s.clock.Now())
	if p.DailyProgressDate == today || (p.DailyProgressDate == "" && p.LastStudyDate == today) {
		return p.DailyProgress
	}
	return 0
}

// Chapters главы с состояниями
func (s *Session) Chapters() []progression.ChapterStatus {
	return s.gate.States(s.progress)
}

// Tests тесты с признаком доступности
func (s *Session) Tests() []TestStatus {
	tests := s.gate.Tests()
	statuses := make([]TestStatus, 0, len(tests))
	for _, t := range tests {
		statuses = append(statuses, TestStatus{Test: t, Available: s.gate.CanTakeTest(s.progress, t)})
	}
	return statuses
}

// TestStatus тест с признаком доступности
type TestStatus struct {
	Test      models.TestOut
	Available bool
}

// Skills дерево навыков
func (s *Session) Skills() []progression.SkillStatus {
	return s.gate.Skills(s.progress)
}

// UnlockSkill открывает навык вручную
func (s *Session) UnlockSkill(ctx context.Context, id int) (*Update, error) {
	skill, err := s.gate.UnlockSkill(ctx, s.progress, id)
	if errors.Is(err, progression.ErrSkillNotFound) ||
		errors.Is(err, progression.ErrSkillLocked) ||
		errors.Is(err, progression.ErrSkillAlreadyUnlocked) {
		return nil, err
	}

	f := &feed{}
	f.persistErr(err)
	f.event(models.EventSkillUnlocked, int64(skill.ID), skill.Name)
	f.notice(models.SeveritySuccess, msgSkillUnlocked, skill.Name)
	s.finish(ctx, f)
	u := f.update()
	return &u, nil
}

// ErrorReport частые ошибки по категориям
func (s *Session) ErrorReport(limit int) []mastery.ErrorGroup {
	return mastery.ErrorReport(s.progress, s.catalog, limit)
}

// WeakWords слабые слова
func (s *Session) WeakWords() []*models.Word {
	return mastery.WeakWords(s.progress, s.catalog)
}
