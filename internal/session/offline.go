package session

import (
	"context"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

// ToggleOfflineLesson скачивает главу для офлайн режима или удаляет скачанную
func (s *Session) ToggleOfflineLesson(ctx context.Context, chapterID int) (*Update, error) {
	p := s.progress
	if !p.IsPremium {
		return nil, ErrNotPremium
	}
	ch, err := s.gate.Chapter(chapterID)
	if err != nil {
		return nil, err
	}

	f := &feed{}
	if p.HasOfflineLesson(chapterID) {
		kept := make([]int, 0, len(p.OfflineLessons))
		for _, id := range p.OfflineLessons {
			if id != chapterID {
				kept = append(kept, id)
			}
		}
		p.OfflineLessons = kept
		if err := s.store.RemoveOfflineLesson(ctx, chapterID); err != nil {
			s.logger.Warn("офлайн урок не удален", zap.Int("chapter_id", chapterID), zap.Error(err))
		}
		f.notice(models.SeverityInfo, msgOfflineRemoved)
	} else {
		if _, err := s.store.SaveOfflineLesson(ctx, ch); err != nil {
			f.persistErr(err)
		} else {
			p.OfflineLessons = append(p.OfflineLessons, chapterID)
			f.notice(models.SeveritySuccess, msgOfflineSaved)
		}
	}

	s.finish(ctx, f)
	u := f.update()
	return &u, nil
}

// ClearOfflineLessons удаляет все скачанные главы
func (s *Session) ClearOfflineLessons(ctx context.Context) (*Update, error) {
	if !s.progress.IsPremium {
		return nil, ErrNotPremium
	}

	f := &feed{}
	removed, err := s.store.ClearOfflineLessons(ctx)
	if err != nil {
		s.logger.Warn("офлайн уроки удалены не полностью", zap.Int("removed", removed), zap.Error(err))
	}
	s.progress.OfflineLessons = []int{}
	f.notice(models.SeverityInfo, msgOfflineCleared)

	s.finish(ctx, f)
	u := f.update()
	return &u, nil
}

// SetPremium включает или выключает премиум
func (s *Session) SetPremium(ctx context.Context, premium bool) *Update {
	f := &feed{}
	s.progress.IsPremium = premium
	if premium {
		s.progress.Hearts = s.progress.MaxHearts
		s.progress.HeartsRefillTime = nil
		f.notice(models.SeveritySuccess, msgPremiumOn)
	}
	s.finish(ctx, f)
	u := f.update()
	return &u
}
