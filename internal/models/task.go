package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority принимает метку в любом регистре.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	}
	return "", false
}

// Формат полей due_date / due_time / time.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Task — задача пользователя.
// Инвариант: CompletedAt != nil тогда и только тогда, когда Completed.
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"index;size:36;not null" json:"user_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	Category    string     `gorm:"size:100;index" json:"category"`
	Priority    Priority   `gorm:"size:16;not null" json:"priority"`
	DueDate     *string    `gorm:"size:10" json:"due_date,omitempty"`
	DueTime     *string    `gorm:"size:5" json:"due_time,omitempty"`
	Time        *string    `gorm:"column:legacy_time;size:5" json:"time,omitempty"` // старое поле: время на "сегодня"
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Task) TableName() string { return "todos" }

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// SetCompleted меняет флаг и держит CompletedAt в согласии с ним.
func (t *Task) SetCompleted(done bool, at time.Time) {
	t.Completed = done
	if done {
		ts := at
		t.CompletedAt = &ts
		return
	}
	t.CompletedAt = nil
}

// DueInstant — момент, к которому привязана задача.
// Порядок: ScheduledAt, затем DueDate(+DueTime), затем legacy Time как "сегодня".
// DueDate без времени трактуется как конец дня.
func (t *Task) DueInstant(now time.Time) (time.Time, bool) {
	loc := now.Location()
	if t.ScheduledAt != nil {
		return t.ScheduledAt.In(loc), true
	}
	if t.DueDate != nil && *t.DueDate != "" {
		day, err := time.ParseInLocation(DateLayout, *t.DueDate, loc)
		if err == nil {
			if t.DueTime != nil && *t.DueTime != "" {
				if clock, err := time.Parse(ClockLayout, *t.DueTime); err == nil {
					return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
				}
			}
			return day.Add(24*time.Hour - time.Second), true
		}
	}
	if t.Time != nil && *t.Time != "" {
		if clock, err := time.Parse(ClockLayout, *t.Time); err == nil {
			y, m, d := now.Date()
			return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc), true
		}
	}
	return time.Time{}, false
}
