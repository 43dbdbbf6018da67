// Package realtime рассылает уведомления об изменениях строк пользователя.
// Клиент на любое событие делает полный refetch, поэтому потеря события
// у медленного подписчика допустима.
package realtime

import (
	"sync"
	"time"
)

type Action string

const (
	ActionInsert  Action = "INSERT"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionDueSoon Action = "due_soon"
)

// Event — изменение одной строки (или напоминание due_soon).
type Event struct {
	Table    string     `json:"table"`
	Action   Action     `json:"action"`
	RecordID string     `json:"record_id"`
	Title    string     `json:"title,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	At       time.Time  `json:"at"`
}

// Publisher — то, что нужно сервисам; реализуется Hub.
type Publisher interface {
	Publish(userID string, ev Event)
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{}), buffer: 16, now: time.Now}
}

// Subscribe возвращает канал событий пользователя и функцию отписки.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish не блокируется: при полном буфере подписчика событие отбрасывается.
func (h *Hub) Publish(userID string, ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers — число активных подписок (для статистики).
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
