package session

import (
	"context"
	"time"

	"kelime/internal/mastery"
	"kelime/pkg/models"

	"go.uber.org/zap"
)

// DailyChestAvailable сундук можно открыть: сегодня еще не открывался и была активность
func (s *Session) DailyChestAvailable() bool {
	return s.dailyChestError() == nil
}

func (s *Session) dailyChestError() error {
	p := s.progress
	now := s.clock.Now()
	today := models.FormatDate(now)
	if p.LastChestDate == today {
		return ErrChestAlreadyOpened
	}
	if p.LastStudyDate != today {
		return ErrChestLocked
	}

	rules := s.rules.DailyChest
	wordsToday := mastery.StudiedOn(p, now)
	xpToday := int64(s.dailyProgress()) * s.rules.XPPerCorrect
	if wordsToday < rules.MinWordsToday && xpToday < int64(rules.MinDailyXP) {
		return ErrChestLocked
	}
	return nil
}

// OpenDailyChest открывает ежедневный сундук
func (s *Session) OpenDailyChest(ctx context.Context) (*ChestOutcome, error) {
	if err := s.dailyChestError(); err != nil {
		return nil, err
	}

	p := s.progress
	now := s.clock.Now()
	rules := s.rules.DailyChest
	xp := s.between(rules.XPMin, rules.XPMax)
	gems := int(s.between(int64(rules.GemsMin), int64(rules.GemsMax)))

	f := &feed{}
	out := &ChestOutcome{WordsToday: mastery.StudiedOn(p, now)}
	out.XP = s.addXP(ctx, xp, "chest", f)
	out.Gems = gems
	p.Gems += gems
	p.LastChestDate = models.FormatDate(now)

	f.event(models.EventDailyChest, out.XP, "")
	f.notice(models.SeveritySuccess, msgDailyChest, out.XP, out.Gems, out.WordsToday)
	s.logger.Info("ежедневный сундук открыт", zap.Int64("xp", out.XP), zap.Int("gems", gems))

	s.finish(ctx, f)
	out.Update = f.update()
	return out, nil
}

// checkGiftChest выдает подарок после выполнения дневной цели: первый раз
// при достаточном опыте, если это разрешено правилами, затем раз в интервал.
func (s *Session) checkGiftChest(ctx context.Context, f *feed) int64 {
	p := s.progress
	rules := s.rules.GiftChest
	now := s.clock.Now()

	if p.LastGiftDate == "" {
		if !rules.FirstOnQualification || p.XP < rules.FirstMinXP {
			return 0
		}
	} else {
		last, err := time.ParseInLocation(models.DateLayout, p.LastGiftDate, now.Location())
		if err != nil {
			s.logger.Warn("некорректная дата подарка", zap.String("date", p.LastGiftDate), zap.Error(err))
			return 0
		}
		if now.Sub(last) < time.Duration(rules.IntervalDays)*24*time.Hour {
			return 0
		}
	}

	xp := s.between(rules.XPMin, rules.XPMax)
	gems := int(s.between(int64(rules.GemsMin), int64(rules.GemsMax)))
	gained := s.addXP(ctx, xp, "gift", f)
	p.Gems += gems
	p.LastGiftDate = models.FormatDate(now)

	f.event(models.EventGiftChest, gained, "")
	f.notice(models.SeveritySuccess, msgGiftChest, gained, gems)
	s.logger.Info("подарочный сундук выдан", zap.Int64("xp", gained), zap.Int("gems", gems))
	return gained
}

// between случайное число в [lo, hi]
func (s *Session) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rnd.Int63n(hi-lo+1)
}
