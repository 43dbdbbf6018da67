// Package views строит производные представления над коллекциями задач и записей.
// Только чистые функции: вход не меняется, "сейчас" передаётся явно.
package views

import (
	"net/url"
	"strings"
	"time"

	"tasktrack/internal/models"
)

// Bucket — класс задачи по дате. Каждая задача попадает ровно в один.
type Bucket string

const (
	BucketAll      Bucket = "all"
	BucketOverdue  Bucket = "overdue"
	BucketToday    Bucket = "today"
	BucketTomorrow Bucket = "tomorrow"
	BucketWeek     Bucket = "week"
	BucketFuture   Bucket = "future"
)

func ParseBucket(s string) (Bucket, bool) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BucketAll, true
	case BucketAll, BucketOverdue, BucketToday, BucketTomorrow, BucketWeek, BucketFuture:
		return b, true
	}
	return "", false
}

type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Search ищет подстроку без учёта регистра в title и description.
func Search(tasks []models.Task, q string) []models.Task {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return tasks
	}
	return keep(tasks, func(t models.Task) bool {
		if strings.Contains(strings.ToLower(t.Title), q) {
			return true
		}
		return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
	})
}

// ByCategory требует точного совпадения; пустая категория не фильтрует.
func ByCategory(tasks []models.Task, category string) []models.Task {
	if category == "" {
		return tasks
	}
	return keep(tasks, func(t models.Task) bool { return t.Category == category })
}

// ByPriority сравнивает метку без учёта регистра.
func ByPriority(tasks []models.Task, priority string) []models.Task {
	if strings.TrimSpace(priority) == "" {
		return tasks
	}
	return keep(tasks, func(t models.Task) bool { return strings.EqualFold(string(t.Priority), strings.TrimSpace(priority)) })
}

func ByStatus(tasks []models.Task, s Status) []models.Task {
	switch s {
	case StatusActive:
		return keep(tasks, func(t models.Task) bool { return !t.Completed })
	case StatusCompleted:
		return keep(tasks, func(t models.Task) bool { return t.Completed })
	default:
		return tasks
	}
}

// Classify относит задачу к корзине по её сроку (см. Task.DueInstant).
// Без срока или выполненная в прошлом: all. Невыполненная в прошлом: overdue.
// Дальше по календарным дням: 0 today, 1 tomorrow, 2..6 week, 7+ future.
func Classify(t models.Task, now time.Time) Bucket {
	due, ok := t.DueInstant(now)
	if !ok {
		return BucketAll
	}
	if due.Before(now) {
		if t.Completed {
			return BucketAll
		}
		return BucketOverdue
	}
	switch days := daysBetween(now, due); {
	case days <= 0:
		return BucketToday
	case days == 1:
		return BucketTomorrow
	case days < 7:
		return BucketWeek
	default:
		return BucketFuture
	}
}

// ByDate: для all всё; иначе задачи, классифицированные ровно в b.
func ByDate(tasks []models.Task, b Bucket, now time.Time) []models.Task {
	if b == "" || b == BucketAll {
		return tasks
	}
	return keep(tasks, func(t models.Task) bool { return Classify(t, now) == b })
}

// Filter собирает всё, что умеет список задач.
type Filter struct {
	Query    string
	Category string
	Priority string
	Date     Bucket
	Status   Status
}

// FilterFromQuery разбирает ?q=&category=&priority=&date=&status=.
func FilterFromQuery(v url.Values) (Filter, error) {
	f := Filter{
		Query:    v.Get("q"),
		Category: v.Get("category"),
		Priority: v.Get("priority"),
		Status:   StatusAll,
	}
	if p := strings.TrimSpace(f.Priority); p != "" {
		if _, ok := models.ParsePriority(p); !ok {
			return f, models.Invalid("priority", "must be one of low, medium, high")
		}
	}
	b, ok := ParseBucket(v.Get("date"))
	if !ok {
		return f, models.Invalid("date", "must be one of all, overdue, today, tomorrow, week, future")
	}
	f.Date = b
	switch s := Status(strings.ToLower(v.Get("status"))); s {
	case "", StatusAll:
	case StatusActive, StatusCompleted:
		f.Status = s
	default:
		return f, models.Invalid("status", "must be one of all, active, completed")
	}
	return f, nil
}

// Describe — короткое описание активных фильтров (для имени файла экспорта).
func (f Filter) Describe() string {
	var parts []string
	if q := strings.TrimSpace(f.Query); q != "" {
		parts = append(parts, "search-"+q)
	}
	if f.Category != "" {
		parts = append(parts, f.Category)
	}
	if f.Priority != "" {
		parts = append(parts, strings.ToLower(f.Priority))
	}
	if f.Date != "" && f.Date != BucketAll {
		parts = append(parts, string(f.Date))
	}
	if f.Status != "" && f.Status != StatusAll {
		parts = append(parts, string(f.Status))
	}
	return strings.Join(parts, " ")
}

// Apply = Search ∘ ByCategory ∘ ByPriority ∘ ByDate ∘ ByStatus.
func Apply(tasks []models.Task, f Filter, now time.Time) []models.Task {
	out := Search(tasks, f.Query)
	out = ByCategory(out, f.Category)
	out = ByPriority(out, f.Priority)
	out = ByDate(out, f.Date, now)
	return ByStatus(out, f.Status)
}

// Categories возвращает различные категории в порядке первого появления.
func Categories(tasks []models.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		if t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		out = append(out, t.Category)
	}
	return out
}

// DueSoon — невыполненные задачи со сроком в (now, now+window].
func DueSoon(tasks []models.Task, now time.Time, window time.Duration) []models.Task {
	limit := now.Add(window)
	return keep(tasks, func(t models.Task) bool {
		if t.Completed {
			return false
		}
		due, ok := t.DueInstant(now)
		return ok && due.After(now) && !due.After(limit)
	})
}

func keep(tasks []models.Task, pred func(models.Task) bool) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// daysBetween считает разницу календарных дат (в зоне now), а не 24-часовых интервалов.
func daysBetween(now, t time.Time) int {
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.In(now.Location()).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
