package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Ограничения прогресса
const (
	MaxXP             int64   = 1<<53 - 1
	XPPerLevel        int64   = 100
	XPPerCrownStep    int64   = 1000
	LevelsPerCrown    int64   = 5
	DefaultInterval           = 24 * time.Hour
	InitialEaseFactor float64 = 2.5
	MinEaseFactor     float64 = 1.3
	MaxEaseFactor     float64 = 2.5
	DefaultDailyGoal          = 20
	DefaultMaxHearts          = 5
	DateLayout                = "2006-01-02"
)

// Stage стадия изучения слова
type Stage string

const (
	StageRecognition Stage = "recognition"
	StageRecall      Stage = "recall"
	StageProduction  Stage = "production"
)

// Rank возвращает порядковый номер стадии, -1 для неизвестной
func (s Stage) Rank() int {
	switch s {
	case StageRecognition:
		return 0
	case StageRecall:
		return 1
	case StageProduction:
		return 2
	default:
		return -1
	}
}

// IsValidStage проверяет валидность стадии
func IsValidStage(stage string) bool {
	return Stage(stage).Rank() >= 0
}

// WordProgress прогресс изучения одного слова
type WordProgress struct {
	ID             int64
	CorrectCount   int
	WrongCount     int
	LastReviewedAt *time.Time
	LastStudiedAt  *time.Time
	Interval       time.Duration
	EaseFactor     float64
	Stage          Stage
}

// NewWordProgress создает прогресс для нового слова
func NewWordProgress(id int64) *WordProgress {
	return &WordProgress{
		ID:         id,
		Interval:   DefaultInterval,
		EaseFactor: InitialEaseFactor,
		Stage:      StageRecognition,
	}
}

// DueAt возвращает момент следующего повторения
func (p *WordProgress) DueAt() time.Time {
	if p.LastReviewedAt == nil {
		return time.Time{}
	}
	return p.LastReviewedAt.Add(p.Interval)
}

// IsDue проверяет, пора ли повторять слово
func (p *WordProgress) IsDue(now time.Time) bool {
	return !now.Before(p.DueAt())
}

// wordProgressJSON хранимое представление, интервал в миллисекундах
type wordProgressJSON struct {
	ID             int64      `json:"id"`
	CorrectCount   int        `json:"correctCount"`
	WrongCount     int        `json:"wrongCount"`
	LastReviewedAt *time.Time `json:"lastReview"`
	LastStudiedAt  *time.Time `json:"lastStudied"`
	IntervalMs     int64      `json:"interval"`
	EaseFactor     float64    `json:"easeFactor"`
	Stage          Stage      `json:"stage"`
}

// MarshalJSON сериализует прогресс слова
func (p WordProgress) MarshalJSON() ([]byte, error) {
	return json.Marshal(wordProgressJSON{
		ID:             p.ID,
		CorrectCount:   p.CorrectCount,
		WrongCount:     p.WrongCount,
		LastReviewedAt: p.LastReviewedAt,
		LastStudiedAt:  p.LastStudiedAt,
		IntervalMs:     p.Interval.Milliseconds(),
		EaseFactor:     p.EaseFactor,
		Stage:          p.Stage,
	})
}

// UnmarshalJSON десериализует прогресс слова, пропущенные поля получают значения по умолчанию
func (p *WordProgress) UnmarshalJSON(data []byte) error {
	raw := struct {
		ID           int64           `json:"id"`
		CorrectCount int             `json:"correctCount"`
		WrongCount   int             `json:"wrongCount"`
		LastReview   json.RawMessage `json:"lastReview"`
		LastStudied  json.RawMessage `json:"lastStudied"`
		IntervalMs   float64         `json:"interval"`
		EaseFactor   float64         `json:"easeFactor"`
		Stage        Stage           `json:"stage"`
	}{
		IntervalMs: float64(DefaultInterval.Milliseconds()),
		EaseFactor: InitialEaseFactor,
		Stage:      StageRecognition,
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	lastReview, err := ParseTimestamp(raw.LastReview)
	if err != nil {
		return fmt.Errorf("lastReview: %w", err)
	}
	lastStudied, err := ParseTimestamp(raw.LastStudied)
	if err != nil {
		return fmt.Errorf("lastStudied: %w", err)
	}

	// интервал вне диапазона time.Duration обрезается до перевода
	const maxIntervalMs = float64(math.MaxInt64 / int64(time.Millisecond))
	intervalMs := math.Max(-maxIntervalMs, math.Min(raw.IntervalMs, maxIntervalMs))

	*p = WordProgress{
		ID:             raw.ID,
		CorrectCount:   raw.CorrectCount,
		WrongCount:     raw.WrongCount,
		LastReviewedAt: lastReview,
		LastStudiedAt:  lastStudied,
		Interval:       time.Duration(intervalMs) * time.Millisecond,
		EaseFactor:     raw.EaseFactor,
		Stage:          raw.Stage,
	}
	return nil
}

// ParseTimestamp читает момент времени в RFC3339 или в миллисекундах Unix
func ParseTimestamp(raw json.RawMessage) (*time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return nil, err
		}
		return &t, nil
	}

	var ms float64
	if err := json.Unmarshal(trimmed, &ms); err != nil {
		return nil, err
	}
	if ms <= 0 {
		return nil, nil
	}
	t := time.UnixMilli(int64(ms))
	return &t, nil
}

// ChapterProgress прогресс по главе
type ChapterProgress struct {
	Completed    int     `json:"completed"`
	Total        int     `json:"total"`
	LearnedWords []int64 `json:"learnedWords"`
	// Rewarded награда за завершение уже выдана
	Rewarded bool `json:"rewarded,omitempty"`
}

// HasLearned проверяет, выучено ли слово в главе
func (c *ChapterProgress) HasLearned(id int64) bool {
	for _, learned := range c.LearnedWords {
		if learned == id {
			return true
		}
	}
	return false
}

// AddLearned добавляет слово в выученные, возвращает false если оно уже было
func (c *ChapterProgress) AddLearned(id int64) bool {
	if c.HasLearned(id) {
		return false
	}
	c.LearnedWords = append(c.LearnedWords, id)
	return true
}

// ValidLearned считает выученные слова, реально принадлежащие главе
func (c *ChapterProgress) ValidLearned(chapterWords map[int64]struct{}) int {
	count := 0
	for _, id := range c.LearnedWords {
		if _, ok := chapterWords[id]; ok {
			count++
		}
	}
	return count
}

// Recount пересчитывает completed и total по составу главы
func (c *ChapterProgress) Recount(chapterWords map[int64]struct{}) {
	c.Total = len(chapterWords)
	c.Completed = c.ValidLearned(chapterWords)
}

// ErrorEntry запись анализа ошибок по слову
type ErrorEntry struct {
	Count       int           `json:"count"`
	LastErrorAt *time.Time    `json:"lastError"`
	Category    ErrorCategory `json:"category"`
}

// UnmarshalJSON принимает время в миллисекундах и старые названия категорий
func (e *ErrorEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Count     int             `json:"count"`
		LastError json.RawMessage `json:"lastError"`
		Category  string          `json:"category"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lastError, err := ParseTimestamp(raw.LastError)
	if err != nil {
		return fmt.Errorf("lastError: %w", err)
	}
	category, _ := ParseErrorCategory(raw.Category)
	*e = ErrorEntry{Count: raw.Count, LastErrorAt: lastError, Category: category}
	return nil
}

// ChallengeProgress состояние задачи
type ChallengeProgress struct {
	Active    bool       `json:"active"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Correct   int        `json:"correct"`
	Total     int        `json:"total"`
	Completed bool       `json:"completed"`
}

// Deadline момент истечения задачи на время
func (c *ChallengeProgress) Deadline(limit time.Duration) (time.Time, bool) {
	if !c.Active || c.StartTime == nil || limit <= 0 {
		return time.Time{}, false
	}
	return c.StartTime.Add(limit), true
}

// StoryProgress прогресс истории: правильно отвеченные слова
type StoryProgress struct {
	Completed int     `json:"completed"`
	Words     []int64 `json:"words"`
}

// AddWord отмечает слово истории, возвращает false для повтора
func (s *StoryProgress) AddWord(id int64) bool {
	for _, w := range s.Words {
		if w == id {
			return false
		}
	}
	s.Words = append(s.Words, id)
	s.Completed = max(s.Completed, len(s.Words))
	return true
}

// UserProgress корневой агрегат прогресса пользователя
type UserProgress struct {
	XP                int64                      `json:"xp"`
	Streak            int                        `json:"streak"`
	LastStudyDate     string                     `json:"lastStudyDate,omitempty"`
	DailyProgress     int                        `json:"dailyProgress"`
	DailyGoal         int                        `json:"dailyGoal"`
	DailyProgressDate string                     `json:"dailyProgressDate,omitempty"`
	Hearts            int                        `json:"hearts"`
	MaxHearts         int                        `json:"maxHearts"`
	HeartsRefillTime  *time.Time                 `json:"heartsRefillTime,omitempty"`
	IsPremium         bool                       `json:"isPremium"`
	Gems              int                        `json:"gems"`
	League            League                     `json:"league,omitempty"`
	LeagueXP          int64                      `json:"leagueXP"`
	WeakWords         []int64                    `json:"weakWords"`
	Badges            []string                   `json:"badges"`
	Chapters          map[int]*ChapterProgress   `json:"chapters"`
	Words             map[int64]*WordProgress    `json:"words"`
	ErrorAnalysis     map[int64]*ErrorEntry      `json:"errorAnalysis"`
	SkillTree         map[int]bool               `json:"skillTree"`
	OfflineLessons    []int                      `json:"offlineLessons"`
	LastChestDate     string                     `json:"lastChestDate,omitempty"`
	LastGiftDate      string                     `json:"lastGiftDate,omitempty"`
	DarkMode          bool                       `json:"darkMode"`
	Notifications     bool                       `json:"notifications"`
	Challenges        map[int]*ChallengeProgress `json:"challenges"`
	Stories           map[int]*StoryProgress     `json:"stories"`
}

// NewUserProgress создает пустой прогресс
func NewUserProgress(dailyGoal, maxHearts int) *UserProgress {
	if dailyGoal <= 0 {
		dailyGoal = DefaultDailyGoal
	}
	if maxHearts <= 0 {
		maxHearts = DefaultMaxHearts
	}
	return &UserProgress{
		DailyGoal:      dailyGoal,
		Hearts:         maxHearts,
		MaxHearts:      maxHearts,
		WeakWords:      []int64{},
		Badges:         []string{},
		Chapters:       make(map[int]*ChapterProgress),
		Words:          make(map[int64]*WordProgress),
		ErrorAnalysis:  make(map[int64]*ErrorEntry),
		SkillTree:      make(map[int]bool),
		OfflineLessons: []int{},
		Notifications:  true,
		Challenges:     make(map[int]*ChallengeProgress),
		Stories:        make(map[int]*StoryProgress),
	}
}

// Level уровень, всегда вычисляется из опыта
func (p *UserProgress) Level() int {
	return CalculateLevel(p.XP)
}

// CrownLevel уровень короны, всегда вычисляется из опыта
func (p *UserProgress) CrownLevel() int {
	return CalculateCrownLevel(p.XP)
}

// HasRealProgress проверяет наличие реальной активности
func (p *UserProgress) HasRealProgress() bool {
	return p.XP > 0 || len(p.Words) > 0 || p.DailyProgress > 0
}

// HasActivity проверяет активность, необходимую для завершения главы
func (p *UserProgress) HasActivity() bool {
	return p.XP > 0 || len(p.Words) > 0
}

// IsWeak проверяет, помечено ли слово как слабое
func (p *UserProgress) IsWeak(id int64) bool {
	for _, weak := range p.WeakWords {
		if weak == id {
			return true
		}
	}
	return false
}

// AddWeakWord добавляет слово в слабые без дубликатов
func (p *UserProgress) AddWeakWord(id int64) bool {
	if p.IsWeak(id) {
		return false
	}
	p.WeakWords = append(p.WeakWords, id)
	return true
}

// HasBadge проверяет наличие значка
func (p *UserProgress) HasBadge(id string) bool {
	for _, badge := range p.Badges {
		if badge == id {
			return true
		}
	}
	return false
}

// AddBadge выдает значок, возвращает false если он уже был
func (p *UserProgress) AddBadge(id string) bool {
	if p.HasBadge(id) {
		return false
	}
	p.Badges = append(p.Badges, id)
	return true
}

// HasOfflineLesson проверяет, скачана ли глава
func (p *UserProgress) HasOfflineLesson(chapterID int) bool {
	for _, id := range p.OfflineLessons {
		if id == chapterID {
			return true
		}
	}
	return false
}

// CalculateLevel вычисляет уровень по опыту
func CalculateLevel(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// CalculateCrownLevel вычисляет уровень короны по опыту
func CalculateCrownLevel(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerCrownStep/LevelsPerCrown) + 1
}

// FormatDate возвращает календарную дату в локальной зоне времени t
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
