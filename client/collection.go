package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

const followRefetchTimeout = 30 * time.Second

// collection — локальный кэш строк пользователя. Источник истины — сервер;
// кэш заменяется целиком при refetch и принадлежит ровно одному пользователю.
type collection[T any] struct {
	id   func(T) string
	stop func()

	mu      sync.RWMutex
	owner   string
	items   []T
	loading bool
	err     string
}

// follow подписывает кэш на смену сессии: выход очищает его,
// вход другого пользователя очищает и перечитывает.
func (c *collection[T]) follow(a *Auth, refetch func(context.Context) error) {
	c.stop = a.OnChange(func(ev Event) {
		switch ev.Type {
		case EventSignedOut:
			c.own("")
		case EventSignedIn:
			if ev.User == nil || !c.own(ev.User.UserID) {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), followRefetchTimeout)
			defer cancel()
			_ = refetch(ctx)
		}
	})
}

// Close отписывает коллекцию от событий сессии.
func (c *collection[T]) Close() {
	if c.stop != nil {
		c.stop()
	}
}

// own закрепляет кэш за userID. Строки прежнего владельца выбрасываются;
// true, если владелец сменился.
func (c *collection[T]) own(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == userID {
		return false
	}
	c.owner = userID
	c.items = nil
	c.err = ""
	return true
}

func (c *collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err — текст последней ошибки; пусто, если последняя операция прошла.
func (c *collection[T]) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *collection[T]) begin() {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
}

// fail запоминает ошибку и возвращает её же.
func (c *collection[T]) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	var ce *Error
	if errors.As(err, &ce) {
		c.err = ce.Message
	} else {
		c.err = err.Error()
	}
	return err
}

func (c *collection[T]) replaceAll(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.loading = false
	c.err = ""
}

func (c *collection[T]) prepend(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T{v}, c.items...)
	c.err = ""
}

// put заменяет строку с тем же id; если её нет, добавляет в начало.
func (c *collection[T]) put(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = ""
	for i := range c.items {
		if c.id(c.items[i]) == c.id(v) {
			c.items[i] = v
			return
		}
	}
	c.items = append([]T{v}, c.items...)
}

func (c *collection[T]) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = ""
	out := c.items[:0]
	for _, it := range c.items {
		if c.id(it) != id {
			out = append(out, it)
		}
	}
	c.items = out
}

func (c *collection[T]) find(match func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if match(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}
