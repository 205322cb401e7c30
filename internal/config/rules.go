package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kelime/pkg/models"
)

// Rules игровые правила обучения
type Rules struct {
	DailyGoal          int                `yaml:"daily_goal"`
	DailyGoalBonusXP   int64              `yaml:"daily_goal_bonus_xp"`
	XPPerCorrect       int64              `yaml:"xp_per_correct"`
	MaxHearts          int                `yaml:"max_hearts"`
	HeartRefillMinutes int                `yaml:"heart_refill_minutes"`
	HeartRefillGemCost int                `yaml:"heart_refill_gem_cost"`
	MaxIntervalDays    int                `yaml:"max_interval_days"`
	InterleaveLimit    int                `yaml:"interleave_limit"`
	PracticeMaxCorrect int                `yaml:"practice_max_correct"`
	Adaptation         AdaptationRules    `yaml:"adaptation"`
	Chapters           ChapterRules       `yaml:"chapters"`
	Leagues            []LeagueThreshold  `yaml:"leagues"`
	Skills             []models.Skill     `yaml:"skills"`
	Tests              []models.TestOut   `yaml:"tests"`
	TestRewards        []TestReward       `yaml:"test_rewards"`
	Badges             BadgeRules         `yaml:"badges"`
	DailyChest         ChestRules         `yaml:"daily_chest"`
	GiftChest          GiftRules          `yaml:"gift_chest"`
	Challenges         []models.Challenge `yaml:"challenges"`
	Stories            []models.Story     `yaml:"stories"`
}

// AdaptationRules параметры подстройки сложности
type AdaptationRules struct {
	Enabled        bool    `yaml:"enabled"`
	DefaultAverage float64 `yaml:"default_average"`
	EasyAverage    float64 `yaml:"easy_average"`
	HardAverage    float64 `yaml:"hard_average"`
	MinTarget      float64 `yaml:"min_target"`
	MaxTarget      float64 `yaml:"max_target"`
	Window         float64 `yaml:"window"`
}

// ChapterRules параметры разбиения на главы
type ChapterRules struct {
	Count          int   `yaml:"count"`
	EvenFillFirst  int   `yaml:"even_fill_first"`
	FallbackWords  int   `yaml:"fallback_words"`
	CompletionXP   int64 `yaml:"completion_xp"`
	CompletionGems int   `yaml:"completion_gems"`
}

// LeagueThreshold порог опыта лиги
type LeagueThreshold struct {
	League models.League `yaml:"league"`
	XP     int64         `yaml:"xp"`
}

// TestReward награда за тест по проценту правильных ответов
type TestReward struct {
	MinPercent float64 `yaml:"min_percent"`
	XP         int64   `yaml:"xp"`
	Gems       int     `yaml:"gems"`
}

// BadgeRules пороги значков
type BadgeRules struct {
	FirstStepsXP int64 `yaml:"first_steps_xp"`
	LearnerXP    int64 `yaml:"learner_xp"`
	ScholarXP    int64 `yaml:"scholar_xp"`
	WeekStreak   int   `yaml:"week_streak"`
	MonthStreak  int   `yaml:"month_streak"`
	CenturyWords int   `yaml:"century_words"`
	HalfKWords   int   `yaml:"half_k_words"`
}

// ChestRules параметры ежедневного сундука
type ChestRules struct {
	MinWordsToday int   `yaml:"min_words_today"`
	MinDailyXP    int   `yaml:"min_daily_xp"`
	XPMin         int64 `yaml:"xp_min"`
	XPMax         int64 `yaml:"xp_max"`
	GemsMin       int   `yaml:"gems_min"`
	GemsMax       int   `yaml:"gems_max"`
}

// GiftRules параметры подарочного сундука
type GiftRules struct {
	IntervalDays         int   `yaml:"interval_days"`
	FirstOnQualification bool  `yaml:"first_on_qualification"`
	FirstMinXP           int64 `yaml:"first_min_xp"`
	XPMin                int64 `yaml:"xp_min"`
	XPMax                int64 `yaml:"xp_max"`
	GemsMin              int   `yaml:"gems_min"`
	GemsMax              int   `yaml:"gems_max"`
}

// DefaultRules возвращает стандартные правила
func DefaultRules() Rules {
	return Rules{
		DailyGoal:          models.DefaultDailyGoal,
		DailyGoalBonusXP:   50,
		XPPerCorrect:       10,
		MaxHearts:          models.DefaultMaxHearts,
		HeartRefillMinutes: 30,
		HeartRefillGemCost: 50,
		MaxIntervalDays:    365,
		InterleaveLimit:    50,
		PracticeMaxCorrect: 5,
		Adaptation: AdaptationRules{
			Enabled:        true,
			DefaultAverage: 8,
			EasyAverage:    7,
			HardAverage:    12,
			MinTarget:      5,
			MaxTarget:      15,
			Window:         3,
		},
		Chapters: ChapterRules{
			Count:          10,
			EvenFillFirst:  5,
			FallbackWords:  50,
			CompletionXP:   100,
			CompletionGems: 10,
		},
		Leagues: []LeagueThreshold{
			{League: models.LeagueBronze, XP: 0},
			{League: models.LeagueSilver, XP: 500},
			{League: models.LeagueGold, XP: 1500},
			{League: models.LeaguePlatinum, XP: 3000},
			{League: models.LeagueDiamond, XP: 5000},
		},
		Skills: []models.Skill{
			{ID: 1, Name: "Temel Kelimeler", XPRequired: 0},
			{ID: 2, Name: "Fiiller", Prerequisites: []int{1}, XPRequired: 200},
			{ID: 3, Name: "İsimler", Prerequisites: []int{1}, XPRequired: 200},
			{ID: 4, Name: "Sıfatlar", Prerequisites: []int{2, 3}, XPRequired: 500},
			{ID: 5, Name: "İleri Seviye", Prerequisites: []int{4}, XPRequired: 1000},
		},
		Tests: []models.TestOut{
			{ID: 1, Name: "Başlangıç Testi", RequiredLevel: 1, Questions: 20},
			{ID: 2, Name: "Orta Seviye Testi", RequiredLevel: 5, Questions: 30},
			{ID: 3, Name: "İleri Seviye Testi", RequiredLevel: 10, Questions: 40},
		},
		TestRewards: []TestReward{
			{MinPercent: 90, XP: 100, Gems: 20},
			{MinPercent: 70, XP: 70, Gems: 10},
			{MinPercent: 50, XP: 50, Gems: 5},
			{MinPercent: 0, XP: 30, Gems: 0},
		},
		Badges: BadgeRules{
			FirstStepsXP: 100,
			LearnerXP:    500,
			ScholarXP:    1000,
			WeekStreak:   7,
			MonthStreak:  30,
			CenturyWords: 100,
			HalfKWords:   500,
		},
		DailyChest: ChestRules{
			MinWordsToday: 5,
			MinDailyXP:    50,
			XPMin:         25,
			XPMax:         74,
			GemsMin:       10,
			GemsMax:       29,
		},
		GiftChest: GiftRules{
			IntervalDays:         7,
			FirstOnQualification: true,
			FirstMinXP:           100,
			XPMin:                50,
			XPMax:                149,
			GemsMin:              25,
			GemsMax:              74,
		},
		Challenges: []models.Challenge{
			{ID: 1, Name: "Hızlı Öğrenci", Description: "10 dakikada 20 kelime", TimeLimit: 10 * time.Minute, Words: 20, XP: 100, Gems: 10},
			{ID: 2, Name: "Mükemmellik", Description: "10 soruda %100 doğru", Target: 10, XP: 150, Gems: 15},
			{ID: 3, Name: "Hız Rekortmeni", Description: "5 dakikada 15 kelime", TimeLimit: 5 * time.Minute, Words: 15, XP: 200, Gems: 20},
		},
		Stories: []models.Story{
			{ID: 1, Title: "İlk Gün", Description: "Yeni başlangıçlar", Words: 20, XP: 50},
			{ID: 2, Title: "Pazar Günü", Description: "Alışveriş macerası", Words: 30, XP: 50},
			{ID: 3, Title: "Okul Günü", Description: "Eğitim yolculuğu", Words: 40, XP: 50},
		},
	}
}

// LoadRules загружает правила из YAML файла поверх стандартных
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("ошибка чтения файла правил: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return DefaultRules(), fmt.Errorf("ошибка разбора файла правил: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return DefaultRules(), fmt.Errorf("ошибка валидации правил: %w", err)
	}

	return rules, nil
}

// Validate проверяет согласованность правил
func (r Rules) Validate() error {
	if r.DailyGoal <= 0 {
		return fmt.Errorf("daily_goal должен быть положительным")
	}
	if r.MaxHearts <= 0 {
		return fmt.Errorf("max_hearts должен быть положительным")
	}
	if r.HeartRefillMinutes <= 0 {
		return fmt.Errorf("heart_refill_minutes должен быть положительным")
	}
	if r.MaxIntervalDays <= 0 {
		return fmt.Errorf("max_interval_days должен быть положительным")
	}
	if r.InterleaveLimit <= 0 {
		return fmt.Errorf("interleave_limit должен быть положительным")
	}
	if r.Adaptation.MinTarget > r.Adaptation.MaxTarget {
		return fmt.Errorf("adaptation.min_target больше max_target")
	}
	if r.Chapters.Count <= 0 {
		return fmt.Errorf("chapters.count должен быть положительным")
	}
	for i := 1; i < len(r.Leagues); i++ {
		if r.Leagues[i].XP < r.Leagues[i-1].XP {
			return fmt.Errorf("пороги лиг должны возрастать")
		}
	}
	for _, l := range r.Leagues {
		if !models.IsValidLeague(string(l.League)) {
			return fmt.Errorf("неизвестная лига: %s", l.League)
		}
	}
	for i := 1; i < len(r.TestRewards); i++ {
		if r.TestRewards[i].MinPercent > r.TestRewards[i-1].MinPercent {
			return fmt.Errorf("награды за тест должны идти по убыванию процента")
		}
	}
	if r.DailyChest.XPMin > r.DailyChest.XPMax || r.DailyChest.GemsMin > r.DailyChest.GemsMax {
		return fmt.Errorf("неверный диапазон наград ежедневного сундука")
	}
	if r.GiftChest.XPMin > r.GiftChest.XPMax || r.GiftChest.GemsMin > r.GiftChest.GemsMax {
		return fmt.Errorf("неверный диапазон наград подарочного сундука")
	}
	for _, c := range r.Challenges {
		if c.Timed() == (c.Target > 0) {
			return fmt.Errorf("задача %d должна иметь либо time_limit, либо target", c.ID)
		}
		if c.Timed() && c.Words <= 0 {
			return fmt.Errorf("задача %d на время без words", c.ID)
		}
	}
	for _, st := range r.Stories {
		if st.Words <= 0 {
			return fmt.Errorf("история %d без слов", st.ID)
		}
	}
	return nil
}

// HeartRefillInterval интервал восстановления одного сердца
func (r Rules) HeartRefillInterval() time.Duration {
	return time.Duration(r.HeartRefillMinutes) * time.Minute
}

// MaxInterval максимальный интервал повторения
func (r Rules) MaxInterval() time.Duration {
	return time.Duration(r.MaxIntervalDays) * 24 * time.Hour
}

// TestRewardFor возвращает награду для процента правильных ответов
func (r Rules) TestRewardFor(percent float64) TestReward {
	for _, reward := range r.TestRewards {
		if percent >= reward.MinPercent {
			return reward
		}
	}
	return TestReward{}
}

// SkillByID ищет навык по идентификатору
func (r Rules) SkillByID(id int) (models.Skill, bool) {
	for _, s := range r.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return models.Skill{}, false
}

// TestByID ищет тест по идентификатору
func (r Rules) TestByID(id int) (models.TestOut, bool) {
	for _, t := range r.Tests {
		if t.ID == id {
			return t, true
		}
	}
	return models.TestOut{}, false
}

// ChallengeByID ищет задачу по идентификатору
func (r Rules) ChallengeByID(id int) (models.Challenge, bool) {
	for _, c := range r.Challenges {
		if c.ID == id {
			return c, true
		}
	}
	return models.Challenge{}, false
}

// StoryByID ищет историю по идентификатору
func (r Rules) StoryByID(id int) (models.Story, bool) {
	for _, st := range r.Stories {
		if st.ID == id {
			return st, true
		}
	}
	return models.Story{}, false
}
