package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// Real системные часы
type Real struct{}

// Now возвращает текущее время
func (Real) Now() time.Time {
	return time.Now()
}

// Manual управляемые часы для тестов и повторного воспроизведения
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создает часы, остановленные на заданном моменте
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now возвращает установленное время
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set устанавливает время
func (m *Manual) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance сдвигает время вперед
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Today возвращает календарную дату в формате YYYY-MM-DD
func Today(c Clock) string {
	return c.Now().Format("2006-01-02")
}

// Yesterday возвращает вчерашнюю дату в формате YYYY-MM-DD
func Yesterday(c Clock) string {
	return c.Now().AddDate(0, 0, -1).Format("2006-01-02")
}
