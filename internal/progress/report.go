package progress

import "fmt"

// Outcome результат загрузки сохраненного прогресса
type Outcome string

const (
	// OutcomeFresh сохраненного прогресса нет
	OutcomeFresh Outcome = "fresh"
	// OutcomeUnreadable хранилище не удалось прочитать
	OutcomeUnreadable Outcome = "unreadable"
	// OutcomeMalformed документ не разобран и отброшен
	OutcomeMalformed Outcome = "malformed"
	// OutcomeWiped в документе нет реальной активности, он заменен пустым
	OutcomeWiped Outcome = "wiped"
	// OutcomeRestored прогресс восстановлен, возможно с исправлениями
	OutcomeRestored Outcome = "restored"
)

// Repair одно исправленное поле
type Repair struct {
	Field  string
	Reason string
}

func (r Repair) String() string {
	return fmt.Sprintf("%s: %s", r.Field, r.Reason)
}

// Report отчет о загрузке прогресса
type Report struct {
	Outcome Outcome
	Repairs []Repair
}

func (r *Report) add(field, format string, args ...any) {
	r.Repairs = append(r.Repairs, Repair{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Changed сообщает, отличается ли результат от сохраненного документа
func (r *Report) Changed() bool {
	switch r.Outcome {
	case OutcomeMalformed, OutcomeWiped:
		return true
	case OutcomeRestored:
		return len(r.Repairs) > 0
	default:
		return false
	}
}
