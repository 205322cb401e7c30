package session

import (
	"context"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

// AddXP начисляет опыт вне ответа, например из админских команд
func (s *Session) AddXP(ctx context.Context, amount int64, source string) (int64, *Update) {
	f := &feed{}
	gained := s.addXP(ctx, amount, source, f)
	s.finish(ctx, f)
	u := f.update()
	return gained, &u
}

// addXP начисляет опыт и запускает побочные эффекты: уровень, корону,
// лигу, значки и навыки. Каждый эффект срабатывает только на переходе порога.
func (s *Session) addXP(ctx context.Context, amount int64, source string, f *feed) int64 {
	p := s.progress
	if amount <= 0 {
		return 0
	}
	if p.XP >= models.MaxXP {
		f.notice(models.SeveritySuccess, msgMaxXP)
		return 0
	}

	oldLevel, oldCrown := p.Level(), p.CrownLevel()
	gained := min(amount, models.MaxXP-p.XP)
	p.XP += gained
	p.LeagueXP = min(p.LeagueXP+amount, models.MaxXP)
	s.recorder.RecordXP(gained, source)

	if p.League == models.LeagueNone {
		p.League = models.LeagueBronze
		f.event(models.EventLeagueJoined, 0, string(p.League))
	}

	if level := p.Level(); level > oldLevel {
		f.event(models.EventLevelUp, int64(level), "")
		f.notice(models.SeveritySuccess, msgLevelUp, level)
		s.recorder.RecordLevelUp()
		s.logger.Info("новый уровень", zap.Int("level", level), zap.Int64("xp", p.XP))
	}
	if crown := p.CrownLevel(); crown > oldCrown {
		f.event(models.EventCrownUp, int64(crown), "")
		f.notice(models.SeveritySuccess, msgCrownUp, crown)
	}

	s.promoteLeague(f)
	s.checkBadges(f)

	unlocked, err := s.gate.AutoUnlockSkills(ctx, p)
	f.persistErr(err)
	for _, skill := range unlocked {
		f.event(models.EventSkillUnlocked, int64(skill.ID), skill.Name)
		f.notice(models.SeveritySuccess, msgSkillUnlocked, skill.Name)
	}
	return gained
}

// promoteLeague переводит в следующую лигу, пока хватает опыта лиги
func (s *Session) promoteLeague(f *feed) {
	p := s.progress
	for {
		next, threshold, ok := s.nextLeague(p.League)
		if !ok || p.LeagueXP < threshold {
			return
		}
		p.League = next
		f.event(models.EventLeaguePromotion, threshold, string(next))
		f.notice(models.SeveritySuccess, msgLeagueUp, LeagueName(next))
		s.recorder.RecordLeaguePromotion(string(next))
		s.logger.Info("переход в лигу", zap.String("league", string(next)), zap.Int64("league_xp", p.LeagueXP))
	}
}

// nextLeague следующая лига и ее порог по правилам
func (s *Session) nextLeague(current models.League) (models.League, int64, bool) {
	idx := -1
	for i, l := range models.LeagueOrder {
		if l == current {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(models.LeagueOrder) {
		return models.LeagueNone, 0, false
	}
	next := models.LeagueOrder[idx+1]
	for _, t := range s.rules.Leagues {
		if t.League == next {
			return next, t.XP, true
		}
	}
	return models.LeagueNone, 0, false
}

// checkBadges выдает значки, условия которых выполнены
func (s *Session) checkBadges(f *feed) {
	p := s.progress
	b := s.rules.Badges
	earned := map[string]bool{
		models.BadgeFirstSteps:    p.XP >= b.FirstStepsXP,
		models.BadgeLearner:       p.XP >= b.LearnerXP,
		models.BadgeScholar:       p.XP >= b.ScholarXP,
		models.BadgeWeekWarrior:   p.Streak >= b.WeekStreak,
		models.BadgeMonthMaster:   p.Streak >= b.MonthStreak,
		models.BadgeDailyAchiever: p.DailyProgress >= p.DailyGoal,
		models.BadgeCentury:       len(p.Words) >= b.CenturyWords,
		models.BadgeHalfK:         len(p.Words) >= b.HalfKWords,
	}

	for _, badge := range Badges() {
		if !earned[badge.ID] || !p.AddBadge(badge.ID) {
			continue
		}
		f.event(models.EventBadgeEarned, 0, badge.ID)
		f.notice(models.SeveritySuccess, msgBadge, badge.Name, badge.Icon)
	}
}

// touchDay начинает новый день: сбрасывает дневной счетчик и продлевает серию
func (s *Session) touchDay(f *feed) {
	p := s.progress
	now := s.clock.Now()
	today := models.FormatDate(now)

	legacyToday := p.DailyProgressDate == "" && p.LastStudyDate == today
	if p.DailyProgressDate != today && !legacyToday {
		p.DailyProgress = 0
	}
	p.DailyProgressDate = today

	if p.LastStudyDate == today {
		return
	}
	if p.LastStudyDate == models.FormatDate(now.AddDate(0, 0, -1)) {
		p.Streak++
	} else {
		p.Streak = 1
	}
	p.LastStudyDate = today
	s.logger.Info("серия обновлена", zap.Int("streak", p.Streak))
	s.checkBadges(f)
}

// countDaily учитывает ответ в дневной цели; бонус выдается только при пересечении цели
func (s *Session) countDaily(ctx context.Context, f *feed) int64 {
	p := s.progress
	before := p.DailyProgress
	p.DailyProgress++
	if before >= p.DailyGoal || p.DailyProgress < p.DailyGoal {
		return 0
	}

	f.event(models.EventDailyGoal, int64(p.DailyGoal), "")
	f.notice(models.SeveritySuccess, msgDailyGoal)
	xp := s.addXP(ctx, s.rules.DailyGoalBonusXP, "daily_goal", f)
	s.checkBadges(f)
	xp += s.checkGiftChest(ctx, f)
	return xp
}
