package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revocations — отозванные access-токены (по jti) до истечения их срока.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemRevocations — хранилище в памяти процесса; годится для одного инстанса.
type MemRevocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemRevocations() *MemRevocations {
	return &MemRevocations{ids: make(map[string]time.Time), now: time.Now}
}

func (m *MemRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[tokenID] = until
	return nil
}

func (m *MemRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.ids[tokenID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.ids, tokenID)
		return false, nil
	}
	return true, nil
}

// GC удаляет записи, чей токен уже истёк сам по себе.
func (m *MemRevocations) GC() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, until := range m.ids {
		if !now.Before(until) {
			delete(m.ids, id)
			n++
		}
	}
	return n
}

// RedisRevocations — общий для нескольких инстансов список отзыва.
// Ключ живёт ровно до истечения токена (SET ... EX).
type RedisRevocations struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRevocations подключается к redis и проверяет соединение.
func NewRedisRevocations(ctx context.Context, addr, password string, db int) (*RedisRevocations, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisRevocations{client: client, prefix: "tasktrack:revoked:", now: time.Now}, nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevocations) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisRevocations) Close() error { return r.client.Close() }
