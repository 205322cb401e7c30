package progression

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kelime/pkg/models"

	"go.uber.org/zap"
)

var (
	ErrSkillNotFound        = errors.New("навык не найден")
	ErrSkillLocked          = errors.New("навык недоступен")
	ErrSkillAlreadyUnlocked = errors.New("навык уже открыт")
)

// SkillStatus навык с состоянием для дерева навыков
type SkillStatus struct {
	Skill     models.Skill
	Unlocked  bool
	CanUnlock bool
}

// IsSkillUnlocked корневой навык без требований открыт по умолчанию
func (g *Gate) IsSkillUnlocked(p *models.UserProgress, skill models.Skill) bool {
	if p.SkillTree[skill.ID] {
		return true
	}
	return len(skill.Prerequisites) == 0 && skill.XPRequired == 0
}

// missingPrerequisites названия неоткрытых требований
func (g *Gate) missingPrerequisites(p *models.UserProgress, skill models.Skill) []string {
	var missing []string
	for _, id := range skill.Prerequisites {
		req, ok := g.rules.SkillByID(id)
		if !ok {
			missing = append(missing, fmt.Sprintf("#%d", id))
			continue
		}
		if !g.IsSkillUnlocked(p, req) {
			missing = append(missing, req.Name)
		}
	}
	return missing
}

func (g *Gate) canUnlock(p *models.UserProgress, skill models.Skill) bool {
	return len(g.missingPrerequisites(p, skill)) == 0 && p.XP >= skill.XPRequired
}

// Skills дерево навыков
func (g *Gate) Skills(p *models.UserProgress) []SkillStatus {
	statuses := make([]SkillStatus, 0, len(g.rules.Skills))
	for _, skill := range g.rules.Skills {
		unlocked := g.IsSkillUnlocked(p, skill)
		statuses = append(statuses, SkillStatus{
			Skill:     skill,
			Unlocked:  unlocked,
			CanUnlock: !unlocked && g.canUnlock(p, skill),
		})
	}
	return statuses
}

// UnlockSkill открывает навык вручную
func (g *Gate) UnlockSkill(ctx context.Context, p *models.UserProgress, id int) (models.Skill, error) {
	skill, ok := g.rules.SkillByID(id)
	if !ok {
		return models.Skill{}, fmt.Errorf("%w: %d", ErrSkillNotFound, id)
	}
	if g.IsSkillUnlocked(p, skill) {
		return skill, fmt.Errorf("%w: %s", ErrSkillAlreadyUnlocked, skill.Name)
	}
	if missing := g.missingPrerequisites(p, skill); len(missing) > 0 {
		return skill, &SkillLockError{Skill: skill, Missing: missing}
	}
	if p.XP < skill.XPRequired {
		return skill, &SkillLockError{Skill: skill, NeedXP: skill.XPRequired}
	}

	p.SkillTree[skill.ID] = true
	g.logger.Info("навык открыт", zap.Int("skill_id", skill.ID), zap.String("name", skill.Name))
	if err := g.saver.Save(ctx, p); err != nil {
		return skill, fmt.Errorf("ошибка сохранения дерева навыков: %w", err)
	}
	return skill, nil
}

// AutoUnlockSkills открывает все навыки, ставшие доступными. Проход повторяется,
// пока открытие одного навыка делает доступным следующий.
func (g *Gate) AutoUnlockSkills(ctx context.Context, p *models.UserProgress) ([]models.Skill, error) {
	var unlocked []models.Skill
	for {
		progressed := false
		for _, skill := range g.rules.Skills {
			if g.IsSkillUnlocked(p, skill) || !g.canUnlock(p, skill) {
				continue
			}
			p.SkillTree[skill.ID] = true
			unlocked = append(unlocked, skill)
			progressed = true
			g.logger.Info("навык открыт автоматически", zap.Int("skill_id", skill.ID))
		}
		if !progressed {
			break
		}
	}

	if len(unlocked) == 0 {
		return nil, nil
	}
	if err := g.saver.Save(ctx, p); err != nil {
		return unlocked, fmt.Errorf("ошибка сохранения дерева навыков: %w", err)
	}
	return unlocked, nil
}

// SkillLockError навык нельзя открыть
type SkillLockError struct {
	Skill   models.Skill
	Missing []string
	NeedXP  int64
}

func (e *SkillLockError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("навык %q требует: %s", e.Skill.Name, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("навык %q требует %d XP", e.Skill.Name, e.NeedXP)
}

func (e *SkillLockError) Unwrap() error {
	return ErrSkillLocked
}
