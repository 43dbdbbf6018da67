// Package notify рассылает напоминания о задачах, срок которых вот-вот наступит.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tasktrack/internal/logs"
	"tasktrack/internal/models"
	"tasktrack/internal/views"
)

// Reminder — одно напоминание о задаче.
type Reminder struct {
	UserID string
	TaskID string
	Title  string
	DueAt  time.Time
}

// Sink доставляет напоминание (SSE, Telegram, ...).
type Sink interface {
	Name() string
	Notify(ctx context.Context, r Reminder) error
}

// TaskSource — невыполненные задачи с привязкой ко времени.
type TaskSource interface {
	ListOpenScheduled(ctx context.Context) ([]models.Task, error)
}

// Notifier объявляет каждую пару (задача, срок) ровно один раз.
// Перенос срока даёт новую пару и новое напоминание.
type Notifier struct {
	tasks  TaskSource
	sinks  []Sink
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time // ключ -> срок
}

func NewNotifier(tasks TaskSource, window time.Duration, sinks ...Sink) *Notifier {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Notifier{
		tasks:  tasks,
		sinks:  sinks,
		window: window,
		now:    time.Now,
		sent:   make(map[string]time.Time),
	}
}

func (n *Notifier) AddSink(s Sink) { n.sinks = append(n.sinks, s) }

// Scan — один проход: находит задачи в окне и рассылает новые напоминания.
// Возвращает число разосланных напоминаний.
func (n *Notifier) Scan(ctx context.Context) (int, error) {
	open, err := n.tasks.ListOpenScheduled(ctx)
	if err != nil {
		return 0, fmt.Errorf("due soon scan: %w", err)
	}
	now := n.now()
	n.forget(now)

	sent := 0
	for _, t := range views.DueSoon(open, now, n.window) {
		due, _ := t.DueInstant(now)
		key := t.ID + "@" + due.UTC().Format(time.RFC3339)
		if !n.claim(key, due) {
			continue
		}
		r := Reminder{UserID: t.UserID, TaskID: t.ID, Title: t.Title, DueAt: due}
		for _, s := range n.sinks {
			if err := s.Notify(ctx, r); err != nil {
				logs.Logger.WithFields(logrus.Fields{
					"sink":    s.Name(),
					"user_id": t.UserID,
					"task_id": t.ID,
				}).Warnf("reminder delivery failed: %v", err)
			}
		}
		sent++
	}
	return sent, nil
}

func (n *Notifier) claim(key string, due time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sent[key]; ok {
		return false
	}
	n.sent[key] = due
	return true
}

// forget убирает ключи, чей срок уже прошёл: повторно они в окно не попадут.
func (n *Notifier) forget(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, due := range n.sent {
		if due.Before(now) {
			delete(n.sent, k)
		}
	}
}
