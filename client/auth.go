package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"tasktrack/internal/auth"
	"tasktrack/internal/logs"
	"tasktrack/internal/models"
)

type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventTokenRefreshed EventType = "token_refreshed"
	EventSignedOut      EventType = "signed_out"
)

// Event описывает смену состояния сессии.
type Event struct {
	Type EventType
	User *models.Profile
}

// ErrSignedOut возвращается при вызове API без сессии.
var ErrSignedOut = &Error{Status: http.StatusUnauthorized, Message: "not signed in"}

// Auth — менеджер сессии. Передаётся коллекциям явно.
type Auth struct {
	c     *Client
	store TokenStore

	// Токен обновляется, когда до истечения остаётся меньше RefreshThreshold.
	RefreshThreshold time.Duration
	// Период проверки в Run.
	CheckInterval time.Duration
	// Копия старше MaxBackupAge при Restore игнорируется.
	MaxBackupAge time.Duration

	now func() time.Time

	mu        sync.RWMutex
	sess      *StoredSession
	loading   bool
	listeners map[int]func(Event)
	nextID    int

	refreshMu sync.Mutex
}

func NewAuth(c *Client, store TokenStore) *Auth {
	return &Auth{
		c:                c,
		store:            store,
		RefreshThreshold: 5 * time.Minute,
		CheckInterval:    time.Minute,
		MaxBackupAge:     24 * time.Hour,
		now:              time.Now,
		loading:          true,
		listeners:        make(map[int]func(Event)),
	}
}

// User возвращает текущего пользователя или nil.
func (a *Auth) User() *models.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sess == nil {
		return nil
	}
	return a.sess.User
}

// Loading истинно до завершения Restore и на время входа/регистрации.
func (a *Auth) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

func (a *Auth) userID() string {
	if u := a.User(); u != nil {
		return u.UserID
	}
	return ""
}

func (a *Auth) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sess == nil {
		return ""
	}
	return a.sess.AccessToken
}

// OnChange подписывает fn на события сессии; возвращает отписку.
func (a *Auth) OnChange(fn func(Event)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Auth) emit(ev Event) {
	a.mu.RLock()
	fns := make([]func(Event), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (a *Auth) setLoading(v bool) {
	a.mu.Lock()
	a.loading = v
	a.mu.Unlock()
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (a *Auth) SignUp(ctx context.Context, email, password, displayName string) error {
	return a.signIn(ctx, "/api/v1/auth/signup", credentials{Email: email, Password: password, DisplayName: displayName})
}

func (a *Auth) SignIn(ctx context.Context, email, password string) error {
	return a.signIn(ctx, "/api/v1/auth/signin", credentials{Email: email, Password: password})
}

func (a *Auth) signIn(ctx context.Context, path string, in credentials) error {
	a.setLoading(true)
	defer a.setLoading(false)
	var tok auth.Tokens
	if _, err := a.c.do(ctx, http.MethodPost, path, "", in, &tok); err != nil {
		return err
	}
	a.adopt(&tok)
	a.emit(Event{Type: EventSignedIn, User: tok.User})
	return nil
}

// adopt делает выданные токены текущей сессией и сохраняет копию.
func (a *Auth) adopt(tok *auth.Tokens) {
	s := &StoredSession{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		SavedAt:      a.now(),
		User:         tok.User,
	}
	a.mu.Lock()
	if s.User == nil && a.sess != nil {
		s.User = a.sess.User
	}
	a.sess = s
	a.mu.Unlock()
	if a.store != nil {
		if err := a.store.Save(s); err != nil {
			logs.Logger.Warnf("session backup: %v", err)
		}
	}
}

// SignOut отзывает сессию на сервере; локально выходит в любом случае.
func (a *Auth) SignOut(ctx context.Context) error {
	token := a.AccessToken()
	if token == "" {
		return nil
	}
	_, err := a.c.do(ctx, http.MethodPost, "/api/v1/auth/signout", token, nil, nil)
	a.drop()
	return err
}

// drop очищает сессию и копию; signed_out шлётся, только если сессия была.
func (a *Auth) drop() {
	a.mu.Lock()
	had := a.sess != nil
	a.sess = nil
	a.mu.Unlock()
	if a.store != nil {
		if err := a.store.Clear(); err != nil {
			logs.Logger.Warnf("session backup clear: %v", err)
		}
	}
	if had {
		a.emit(Event{Type: EventSignedOut})
	}
}

// Restore поднимает сессию из копии. При любой ошибке клиент остаётся без сессии.
func (a *Auth) Restore(ctx context.Context) {
	a.setLoading(true)
	defer a.setLoading(false)
	if a.store == nil {
		return
	}
	s, err := a.store.Load()
	if err != nil || s == nil || s.RefreshToken == "" {
		if err != nil {
			logs.Logger.Warnf("session restore: %v", err)
			_ = a.store.Clear()
		}
		return
	}
	now := a.now()
	if now.Sub(s.SavedAt) > a.MaxBackupAge {
		_ = a.store.Clear()
		return
	}
	a.mu.Lock()
	a.sess = s
	a.mu.Unlock()
	if s.ExpiresAt.Sub(now) <= a.RefreshThreshold {
		if err := a.Refresh(ctx); err != nil {
			a.drop()
			return
		}
	}
	a.emit(Event{Type: EventSignedIn, User: a.User()})
}

// Refresh меняет пару токенов. Отказ сервера завершает сессию.
func (a *Auth) Refresh(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.RLock()
	var refresh string
	if a.sess != nil {
		refresh = a.sess.RefreshToken
	}
	a.mu.RUnlock()
	if refresh == "" {
		return ErrSignedOut
	}

	var tok auth.Tokens
	status, err := a.c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": refresh}, &tok)
	if err != nil {
		if status == http.StatusUnauthorized {
			a.drop()
		}
		return err
	}
	a.adopt(&tok)
	a.emit(Event{Type: EventTokenRefreshed, User: tok.User})
	return nil
}

// Run проверяет срок токена раз в CheckInterval до отмены ctx.
func (a *Auth) Run(ctx context.Context) {
	tick := time.NewTicker(a.CheckInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			a.refreshIfDue(ctx)
		}
	}
}

func (a *Auth) refreshIfDue(ctx context.Context) {
	a.mu.RLock()
	s := a.sess
	a.mu.RUnlock()
	if s == nil || s.ExpiresAt.Sub(a.now()) > a.RefreshThreshold {
		return
	}
	if err := a.Refresh(ctx); err != nil {
		logs.Logger.Warnf("token refresh: %v", err)
	}
}

// call делает авторизованный вызов API. Ответ session_expired принудительно завершает сессию.
func (a *Auth) call(ctx context.Context, method, path string, in, out any) (int, error) {
	token := a.AccessToken()
	if token == "" {
		return 0, ErrSignedOut
	}
	status, err := a.c.do(ctx, method, path, token, in, out)
	var ce *Error
	if errors.As(err, &ce) && ce.SessionExpired() {
		a.drop()
	}
	return status, err
}
