package session

import (
	"context"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

// loseHeart снимает сердце за ошибку и запускает отсчет восстановления
func (s *Session) loseHeart(f *feed) {
	p := s.progress
	if p.IsPremium {
		return
	}
	p.Hearts = max(0, p.Hearts-1)
	if p.HeartsRefillTime == nil && p.Hearts < p.MaxHearts {
		now := s.clock.Now()
		p.HeartsRefillTime = &now
	}
}

// RefillHearts пересчитывает сердца по прошедшему времени
func (s *Session) RefillHearts(ctx context.Context) (int, *Update) {
	f := &feed{}
	before := s.progress.HeartsRefillTime
	added := s.refillHearts(f)
	if added > 0 || before != s.progress.HeartsRefillTime {
		s.finish(ctx, f)
	}
	u := f.update()
	return added, &u
}

// refillHearts восстанавливает по сердцу за каждый полный интервал.
// Остаток интервала переносится, поэтому после долгого перерыва начисляется сразу несколько.
func (s *Session) refillHearts(f *feed) int {
	p := s.progress
	if p.IsPremium {
		return 0
	}
	if p.Hearts >= p.MaxHearts {
		p.HeartsRefillTime = nil
		return 0
	}

	now := s.clock.Now()
	if p.HeartsRefillTime == nil {
		p.HeartsRefillTime = &now
		return 0
	}

	interval := s.rules.HeartRefillInterval()
	passed := now.Sub(*p.HeartsRefillTime)
	if interval <= 0 || passed < interval {
		return 0
	}

	before := p.Hearts
	p.Hearts = min(p.MaxHearts, p.Hearts+int(passed/interval))
	if p.Hearts >= p.MaxHearts {
		p.HeartsRefillTime = nil
	} else {
		next := now.Add(-(passed % interval))
		p.HeartsRefillTime = &next
	}

	added := p.Hearts - before
	f.event(models.EventHeartsRefilled, int64(added), "")
	f.notice(models.SeveritySuccess, msgHeartsRefilled, added)
	s.logger.Info("сердца восстановлены", zap.Int("added", added), zap.Int("hearts", p.Hearts))
	return added
}

// RefillHeartsWithGems полностью восстанавливает сердца за кристаллы
func (s *Session) RefillHeartsWithGems(ctx context.Context) (*Update, error) {
	p := s.progress
	cost := s.rules.HeartRefillGemCost
	if p.Gems < cost {
		return nil, ErrNotEnoughGems
	}

	p.Gems -= cost
	p.Hearts = p.MaxHearts
	p.HeartsRefillTime = nil

	f := &feed{}
	f.event(models.EventHeartsRefilled, int64(p.MaxHearts), "gems")
	f.notice(models.SeveritySuccess, msgHeartsFull)
	s.finish(ctx, f)
	u := f.update()
	return &u, nil
}
