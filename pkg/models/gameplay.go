package models

import "time"

// League лига пользователя, пустая строка означает отсутствие лиги
type League string

const (
	LeagueNone     League = ""
	LeagueBronze   League = "bronze"
	LeagueSilver   League = "silver"
	LeagueGold     League = "gold"
	LeaguePlatinum League = "platinum"
	LeagueDiamond  League = "diamond"
)

// LeagueOrder порядок лиг от младшей к старшей
var LeagueOrder = []League{LeagueBronze, LeagueSilver, LeagueGold, LeaguePlatinum, LeagueDiamond}

// IsValidLeague проверяет валидность лиги
func IsValidLeague(league string) bool {
	for _, l := range LeagueOrder {
		if string(l) == league {
			return true
		}
	}
	return false
}

// Mode режим обучения
type Mode string

const (
	ModeDefault           Mode = ""
	ModeSpacedRepetition  Mode = "spaced-repetition"
	ModeWeakWords         Mode = "weak-words"
	ModeInterleaved       Mode = "interleaved"
	ModePractice          Mode = "practice"
	ModeContextual        Mode = "contextual"
	ModeConversation      Mode = "conversation"
	ModeAudioFirst        Mode = "audio-first"
	ModeRecognitionRecall Mode = "recognition-recall"
	ModeChapter           Mode = "chapter"
	ModeTestOut           Mode = "test-out"
	ModeChallenge         Mode = "challenge"
	ModeStory             Mode = "story"
)

// IsValidMode проверяет валидность режима
func IsValidMode(mode string) bool {
	switch Mode(mode) {
	case ModeDefault, ModeSpacedRepetition, ModeWeakWords, ModeInterleaved, ModePractice,
		ModeContextual, ModeConversation, ModeAudioFirst, ModeRecognitionRecall, ModeChapter, ModeTestOut,
		ModeChallenge, ModeStory:
		return true
	}
	return false
}

// Normalize приводит псевдонимы режимов к основному режиму
// Вопросы задачи подбираются как в смешанном режиме.
func (m Mode) Normalize() Mode {
	switch m {
	case ModeConversation:
		return ModeContextual
	case ModeChallenge:
		return ModeInterleaved
	}
	return m
}

// QuestionKind вид вопроса для отображения
type QuestionKind string

const (
	QuestionDefault     QuestionKind = "default"
	QuestionRecognition QuestionKind = "recognition"
	QuestionRecall      QuestionKind = "recall"
	QuestionProduction  QuestionKind = "production"
	QuestionAudio       QuestionKind = "audio"
	QuestionContextual  QuestionKind = "contextual"
)

// Chapter глава каталога
type Chapter struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Difficulty int     `json:"difficulty"`
	Words      []*Word `json:"words"`
}

// WordSet возвращает множество идентификаторов слов главы
func (c *Chapter) WordSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(c.Words))
	for _, w := range c.Words {
		set[w.ID] = struct{}{}
	}
	return set
}

// ChapterState состояние главы
type ChapterState string

const (
	ChapterLocked     ChapterState = "locked"
	ChapterUnlockable ChapterState = "unlockable"
	ChapterInProgress ChapterState = "in-progress"
	ChapterCompleted  ChapterState = "completed"
)

// Skill узел дерева навыков
type Skill struct {
	ID            int    `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Prerequisites []int  `json:"prerequisites" yaml:"prerequisites"`
	XPRequired    int64  `json:"xp_required" yaml:"xp_required"`
}

// TestOut тест для перепрыгивания уровней
type TestOut struct {
	ID            int    `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	RequiredLevel int    `json:"required_level" yaml:"required_level"`
	Questions     int    `json:"questions" yaml:"questions"`
}

// Challenge задача с наградой. Задача на время засчитывается, если до
// истечения TimeLimit набрано Words правильных ответов. Задача с Target
// завершается после Target ответов и засчитывается только без ошибок.
type Challenge struct {
	ID          int           `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	TimeLimit   time.Duration `json:"time_limit,omitempty" yaml:"time_limit"`
	Words       int           `json:"words,omitempty" yaml:"words"`
	Target      int           `json:"target,omitempty" yaml:"target"`
	XP          int64         `json:"xp" yaml:"xp"`
	Gems        int           `json:"gems" yaml:"gems"`
}

// Timed задача ограничена по времени
func (c Challenge) Timed() bool {
	return c.TimeLimit > 0
}

// Story история из слов с контекстом
type Story struct {
	ID          int    `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Words       int    `json:"words" yaml:"words"`
	XP          int64  `json:"xp" yaml:"xp"`
}

// OfflineLesson скачанная глава для офлайн режима
type OfflineLesson struct {
	ChapterID    int       `json:"chapterId"`
	Words        []*Word   `json:"words"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Идентификаторы значков
const (
	BadgeFirstSteps    = "first_steps"
	BadgeLearner       = "learner"
	BadgeScholar       = "scholar"
	BadgeWeekWarrior   = "week_warrior"
	BadgeMonthMaster   = "month_master"
	BadgeDailyAchiever = "daily_achiever"
	BadgeCentury       = "century"
	BadgeHalfK         = "half_k"
)

// EventKind тип события сессии
type EventKind string

const (
	EventLevelUp            EventKind = "level_up"
	EventCrownUp            EventKind = "crown_up"
	EventLeagueJoined       EventKind = "league_joined"
	EventLeaguePromotion    EventKind = "league_promotion"
	EventBadgeEarned        EventKind = "badge_earned"
	EventSkillUnlocked      EventKind = "skill_unlocked"
	EventDailyGoal          EventKind = "daily_goal"
	EventDailyChest         EventKind = "daily_chest"
	EventGiftChest          EventKind = "gift_chest"
	EventChapterCompleted   EventKind = "chapter_completed"
	EventTestCompleted      EventKind = "test_completed"
	EventChallengeCompleted EventKind = "challenge_completed"
	EventChallengeFailed    EventKind = "challenge_failed"
	EventStoryCompleted     EventKind = "story_completed"
	EventHeartsDepleted     EventKind = "hearts_depleted"
	EventHeartsRefilled     EventKind = "hearts_refilled"
	EventStageAdvanced      EventKind = "stage_advanced"
	EventPersistenceWarning EventKind = "persistence_warning"
)

// Event событие, возникшее в результате команды
type Event struct {
	Kind   EventKind `json:"kind"`
	Value  int64     `json:"value,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Severity важность уведомления
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice уведомление для пользователя
type Notice struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
