package progress

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"kelime/internal/config"
	"kelime/pkg/models"
)

// decoder разбирает документ прогресса по полям, не доверяя ни одному из них
type decoder struct {
	fields map[string]json.RawMessage
	report *Report
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// raw возвращает поле, если оно присутствует и не null
func (d *decoder) raw(name string) (json.RawMessage, bool) {
	raw, ok := d.fields[name]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

// number читает числовое поле
func (d *decoder) number(name string) (float64, bool) {
	raw, ok := d.raw(name)
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		d.report.add(name, "не число: %s", string(raw))
		return 0, false
	}
	return f, true
}

// counter читает неотрицательное целое, ограниченное max
func (d *decoder) counter(name string, max int64) int64 {
	f, ok := d.number(name)
	if !ok {
		return 0
	}
	return clampCounter(d.report, name, f, max)
}

func clampCounter(report *Report, name string, f float64, max int64) int64 {
	switch {
	case math.IsNaN(f) || f < 0:
		report.add(name, "отрицательное значение %v заменено на 0", f)
		return 0
	case f > float64(max):
		report.add(name, "значение %v ограничено %d", f, max)
		return max
	}
	return int64(f)
}

// decode разбирает поле произвольного типа
func (d *decoder) decode(name string, dst any) bool {
	raw, ok := d.raw(name)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		d.report.add(name, "некорректное значение отброшено: %v", err)
		return false
	}
	return true
}

// date читает дату в формате YYYY-MM-DD
func (d *decoder) date(name string) string {
	var s string
	if !d.decode(name, &s) || s == "" {
		return ""
	}
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		d.report.add(name, "некорректная дата %q отброшена", s)
		return ""
	}
	return s
}

// words разбирает прогресс по словам, отбрасывая поврежденные записи
func (d *decoder) words(rules config.Rules) map[int64]*models.WordProgress {
	words := make(map[int64]*models.WordProgress)
	var entries map[string]json.RawMessage
	if !d.decode("words", &entries) {
		return words
	}

	for key, raw := range entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			d.report.add("words", "некорректный идентификатор слова %q", key)
			continue
		}
		if isNull(raw) {
			d.report.add("words", "пустая запись слова %d", id)
			continue
		}
		wp := models.NewWordProgress(id)
		if err := json.Unmarshal(raw, wp); err != nil {
			d.report.add("words", "запись слова %d отброшена: %v", id, err)
			continue
		}
		if wp.ID != id {
			wp.ID = id
		}
		sanitizeWord(d.report, wp, rules.MaxInterval())
		words[id] = wp
	}
	return words
}

// sanitizeWord приводит поля прогресса слова к допустимым границам
func sanitizeWord(report *Report, wp *models.WordProgress, maxInterval time.Duration) {
	field := "words." + strconv.FormatInt(wp.ID, 10)
	if wp.CorrectCount < 0 {
		report.add(field, "correct < 0")
		wp.CorrectCount = 0
	}
	if wp.WrongCount < 0 {
		report.add(field, "wrong < 0")
		wp.WrongCount = 0
	}
	if wp.Interval < 0 {
		report.add(field, "отрицательный интервал")
		wp.Interval = 0
	}
	if wp.Interval > maxInterval {
		report.add(field, "интервал ограничен %s", maxInterval)
		wp.Interval = maxInterval
	}
	if math.IsNaN(wp.EaseFactor) || wp.EaseFactor < models.MinEaseFactor {
		report.add(field, "коэффициент легкости %v поднят до минимума", wp.EaseFactor)
		wp.EaseFactor = models.MinEaseFactor
	}
	if wp.EaseFactor > models.MaxEaseFactor {
		report.add(field, "коэффициент легкости %v ограничен максимумом", wp.EaseFactor)
		wp.EaseFactor = models.MaxEaseFactor
	}
	if wp.Stage.Rank() < 0 {
		report.add(field, "неизвестная стадия %q", wp.Stage)
		wp.Stage = models.StageRecognition
	}
}

// ids разбирает список идентификаторов без дубликатов
func (d *decoder) ids(name string) []int64 {
	out := []int64{}
	var raw []float64
	if !d.decode(name, &raw) {
		return out
	}
	seen := make(map[int64]struct{}, len(raw))
	for _, f := range raw {
		id := int64(f)
		if id <= 0 || float64(id) != f {
			d.report.add(name, "некорректный идентификатор %v", f)
			continue
		}
		if _, dup := seen[id]; dup {
			d.report.add(name, "дубликат %d удален", id)
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// stringList разбирает список строк без дубликатов
func (d *decoder) stringList(name string) []string {
	out := []string{}
	var raw []string
	if !d.decode(name, &raw) {
		return out
	}
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// rawChapter сохраненный прогресс главы до проверки
type rawChapter struct {
	Completed    float64   `json:"completed"`
	Total        float64   `json:"total"`
	LearnedWords []float64 `json:"learnedWords"`
	Rewarded     bool      `json:"rewarded"`
}

// chapters восстанавливает прогресс глав из списков выученных слов
func (d *decoder) chapters() map[int]*models.ChapterProgress {
	chapters := make(map[int]*models.ChapterProgress)
	var entries map[string]json.RawMessage
	if !d.decode("chapters", &entries) {
		return chapters
	}

	for key, raw := range entries {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			d.report.add("chapters", "некорректный идентификатор главы %q", key)
			continue
		}
		field := "chapters." + key

		var rc rawChapter
		if isNull(raw) || json.Unmarshal(raw, &rc) != nil {
			d.report.add(field, "поврежденная запись главы сброшена")
			chapters[id] = &models.ChapterProgress{LearnedWords: []int64{}}
			continue
		}

		total := 0
		if rc.Total > 0 {
			total = int(rc.Total)
		}

		learned := make([]int64, 0, len(rc.LearnedWords))
		seen := make(map[int64]struct{}, len(rc.LearnedWords))
		for _, f := range rc.LearnedWords {
			wid := int64(f)
			if wid <= 0 || float64(wid) != f {
				continue
			}
			if _, dup := seen[wid]; dup {
				continue
			}
			seen[wid] = struct{}{}
			learned = append(learned, wid)
		}

		cp := &models.ChapterProgress{Total: total, LearnedWords: learned}
		if rc.Completed > 0 && len(learned) == 0 {
			d.report.add(field, "completed=%v без выученных слов сброшен", rc.Completed)
		} else {
			if int(rc.Completed) != len(learned) {
				d.report.add(field, "completed=%v пересчитан из выученных слов (%d)", rc.Completed, len(learned))
			}
			cp.Completed = len(learned)
			cp.Rewarded = rc.Rewarded
		}
		if cp.Total < cp.Completed {
			d.report.add(field, "total=%d меньше completed=%d", cp.Total, cp.Completed)
			cp.Total = cp.Completed
		}
		chapters[id] = cp
	}
	return chapters
}

// errorAnalysis разбирает анализ ошибок
func (d *decoder) errorAnalysis() map[int64]*models.ErrorEntry {
	out := make(map[int64]*models.ErrorEntry)
	var entries map[string]*models.ErrorEntry
	if !d.decode("errorAnalysis", &entries) {
		return out
	}
	for key, entry := range entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 || entry == nil {
			d.report.add("errorAnalysis", "запись %q отброшена", key)
			continue
		}
		if entry.Count <= 0 || !models.IsValidErrorCategory(string(entry.Category)) {
			d.report.add("errorAnalysis", "запись слова %d отброшена", id)
			continue
		}
		out[id] = entry
	}
	return out
}

// skillTree разбирает дерево навыков
func (d *decoder) skillTree() map[int]bool {
	out := make(map[int]bool)
	var entries map[string]bool
	if !d.decode("skillTree", &entries) {
		return out
	}
	for key, unlocked := range entries {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			d.report.add("skillTree", "некорректный навык %q", key)
			continue
		}
		if unlocked {
			out[id] = true
		}
	}
	return out
}

// offlineLessons разбирает список скачанных глав
func (d *decoder) offlineLessons() []int {
	out := []int{}
	for _, id := range d.ids("offlineLessons") {
		out = append(out, int(id))
	}
	return out
}

type rawChallenge struct {
	Active    bool            `json:"active"`
	StartTime json.RawMessage `json:"startTime"`
	Correct   float64         `json:"correct"`
	Total     float64         `json:"total"`
	Completed bool            `json:"completed"`
}

// challenges разбирает состояние задач
func (d *decoder) challenges() map[int]*models.ChallengeProgress {
	out := make(map[int]*models.ChallengeProgress)
	var entries map[string]json.RawMessage
	if !d.decode("challenges", &entries) {
		return out
	}

	for key, raw := range entries {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			d.report.add("challenges", "некорректный идентификатор задачи %q", key)
			continue
		}
		field := "challenges." + key

		var rc rawChallenge
		if isNull(raw) || json.Unmarshal(raw, &rc) != nil {
			d.report.add(field, "поврежденная запись задачи отброшена")
			continue
		}

		cp := &models.ChallengeProgress{
			Active:    rc.Active && !rc.Completed,
			Correct:   int(clampCounter(d.report, field+".correct", rc.Correct, maxInt32)),
			Total:     int(clampCounter(d.report, field+".total", rc.Total, maxInt32)),
			Completed: rc.Completed,
		}
		if rc.Active && rc.Completed {
			d.report.add(field, "завершенная задача не может быть активной")
		}
		if cp.Correct > cp.Total {
			d.report.add(field, "correct=%d больше total=%d", cp.Correct, cp.Total)
			cp.Correct = cp.Total
		}
		startTime, err := models.ParseTimestamp(rc.StartTime)
		if err != nil {
			d.report.add(field, "некорректное время начала отброшено: %v", err)
		}
		cp.StartTime = startTime
		out[id] = cp
	}
	return out
}

type rawStory struct {
	Completed float64   `json:"completed"`
	Words     []float64 `json:"words"`
}

// stories разбирает прогресс историй
func (d *decoder) stories() map[int]*models.StoryProgress {
	out := make(map[int]*models.StoryProgress)
	var entries map[string]json.RawMessage
	if !d.decode("stories", &entries) {
		return out
	}

	for key, raw := range entries {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 {
			d.report.add("stories", "некорректный идентификатор истории %q", key)
			continue
		}
		field := "stories." + key

		var rs rawStory
		if isNull(raw) || json.Unmarshal(raw, &rs) != nil {
			d.report.add(field, "поврежденная запись истории отброшена")
			continue
		}

		sp := &models.StoryProgress{
			Completed: int(clampCounter(d.report, field+".completed", rs.Completed, maxInt32)),
			Words:     []int64{},
		}
		for _, f := range rs.Words {
			wid := int64(f)
			if wid <= 0 || float64(wid) != f {
				d.report.add(field, "некорректное слово %v", f)
				continue
			}
			if !sp.AddWord(wid) {
				d.report.add(field, "повтор слова %d", wid)
			}
		}
		out[id] = sp
	}
	return out
}

// boolean читает логическое поле
func (d *decoder) boolean(name string, def bool) bool {
	var b bool
	if !d.decode(name, &b) {
		return def
	}
	return b
}
