package admin

import (
	"sync"
	"time"
)

// State — решение гейта админки для сессии.
type State string

const (
	StateChecking State = "checking"
	StateGranted  State = "granted"
	StateDenied   State = "denied"
)

type gateEntry struct {
	state State
	until time.Time
}

// Gate кэширует решение по семейству сессии (auth.Session.FamilyID), которое
// не меняется при ротации refresh-токена. denied окончательно: новое решение
// возможно только после повторного входа. Срок записи продлевается при каждом
// обращении, поэтому живое семейство своё решение не теряет.
// Это UX-слой; на каждом запросе права проверяются заново через access.CanAdminister.
type Gate struct {
	mu      sync.Mutex
	entries map[string]gateEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewGate(ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gate{entries: make(map[string]gateEntry), ttl: ttl, now: time.Now}
}

// Peek — текущее состояние без проверки; checking, если решения ещё нет.
func (g *Gate) Peek(familyID string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[familyID]; ok && g.now().Before(e.until) {
		return e.state
	}
	return StateChecking
}

// Check возвращает закэшированное решение или вызывает decide.
// Ошибка decide не кэшируется: сбой БД не должен навсегда закрыть админку.
func (g *Gate) Check(familyID string, decide func() (bool, error)) (State, error) {
	now := g.now()
	g.mu.Lock()
	g.prune(now)
	if e, ok := g.entries[familyID]; ok {
		e.until = now.Add(g.ttl)
		g.entries[familyID] = e
		g.mu.Unlock()
		return e.state, nil
	}
	g.mu.Unlock()

	ok, err := decide()
	if err != nil {
		return StateChecking, err
	}
	state := StateDenied
	if ok {
		state = StateGranted
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// параллельный Check мог успеть раньше; denied не перезаписываем
	if e, exists := g.entries[familyID]; exists && e.state == StateDenied {
		return e.state, nil
	}
	g.entries[familyID] = gateEntry{state: state, until: now.Add(g.ttl)}
	return state, nil
}

// Deny фиксирует отказ: админ-запрос сессии не прошёл проверку прав.
func (g *Gate) Deny(familyID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[familyID] = gateEntry{state: StateDenied, until: g.now().Add(g.ttl)}
}

func (g *Gate) prune(now time.Time) {
	for id, e := range g.entries {
		if !now.Before(e.until) {
			delete(g.entries, id)
		}
	}
}
