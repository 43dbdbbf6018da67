package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktrack/internal/logs"
	"tasktrack/internal/models"
	"tasktrack/internal/repo"
)

var (
	ErrInvalidCredentials = models.NewError(models.ErrUnauthorized, "invalid login credentials")
	ErrEmailTaken         = models.NewError(models.ErrConflict, "user already registered")
	ErrInvalidRefresh     = models.NewError(models.ErrUnauthorized, "invalid refresh token")
	ErrWeakPassword       = &models.ValidationError{Field: "password", Message: "too short"}
)

// Options — параметры выпуска токенов.
type Options struct {
	Secret          []byte
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	MinPasswordLen  int
	SuperAdminEmail string
}

// Session — аутентифицированный субъект запроса (из access-токена).
type Session struct {
	UserID    string
	SessionID string
	// FamilyID переживает ротацию refresh-токена и меняется только при новом входе.
	FamilyID  string
	TokenID   string
	Email     string
	ExpiresAt time.Time
}

// Tokens — выданная клиенту пара токенов.
type Tokens struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresAt    time.Time       `json:"expires_at"`
	ExpiresIn    int64           `json:"expires_in"`
	User         *models.Profile `json:"user"`
}

type Service struct {
	users    *repo.ProfileStore
	sessions *repo.SessionStore
	revoked  Revocations
	opt      Options
	now      func() time.Time
}

func NewService(users *repo.ProfileStore, sessions *repo.SessionStore, revoked Revocations, opt Options) *Service {
	if opt.MinPasswordLen <= 0 {
		opt.MinPasswordLen = 6
	}
	if revoked == nil {
		revoked = NewMemRevocations()
	}
	return &Service{users: users, sessions: sessions, revoked: revoked, opt: opt, now: time.Now}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *Service) SignUp(ctx context.Context, email, password, displayName, userAgent string) (*Tokens, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, models.Invalid("email", "a valid email is required")
	}
	if len(password) < s.opt.MinPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	u := &models.User{Email: email, PasswordHash: hash}
	p := &models.Profile{DisplayName: strings.TrimSpace(displayName)}
	if err := s.users.CreateUser(ctx, u, p); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if s.opt.SuperAdminEmail != "" && email == normalizeEmail(s.opt.SuperAdminEmail) {
		granted, err := s.users.BootstrapSuperAdmin(ctx, email)
		if err != nil {
			return nil, err
		}
		if granted {
			logs.Logger.WithField("user_id", u.ID).Info("super admin bootstrapped")
		}
	}
	logs.Logger.WithField("user_id", u.ID).Info("user signed up")
	return s.issue(ctx, u, userAgent, "")
}

func (s *Service) SignIn(ctx context.Context, email, password, userAgent string) (*Tokens, error) {
	u, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if err := s.users.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		return nil, fmt.Errorf("touch last login: %w", err)
	}
	return s.issue(ctx, u, userAgent, "")
}

// Refresh меняет refresh-токен на новую пару; старый отзывается.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefresh
	}
	as, err := s.sessions.FindByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	now := s.now()
	if !as.Active(now) {
		return nil, ErrInvalidRefresh
	}
	if err := s.sessions.Revoke(ctx, as.ID, now); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	u, err := s.users.GetUser(ctx, as.UserID)
	if err != nil {
		return nil, err
	}
	family := as.FamilyID
	if family == "" {
		family = as.ID
	}
	return s.issue(ctx, u, userAgent, family)
}

// SignOut отзывает refresh-сессию и текущий access-токен.
func (s *Service) SignOut(ctx context.Context, sess Session) error {
	if err := s.sessions.Revoke(ctx, sess.SessionID, s.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if err := s.revoked.Revoke(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		return err
	}
	logs.Logger.WithField("user_id", sess.UserID).Info("user signed out")
	return nil
}

// Authenticate проверяет access-токен.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := parseAccess(s.opt.Secret, accessToken, s.now())
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			return nil, models.ErrSessionExpired
		}
		return nil, models.ErrUnauthorized
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, models.ErrUnauthorized
	}
	family := claims.FamilyID
	if family == "" {
		family = claims.SessionID
	}
	return &Session{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		FamilyID:  family,
		TokenID:   claims.ID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.users.Get(ctx, userID)
}

// SetTelegramChat привязывает чат для напоминаний; nil отвязывает.
func (s *Service) SetTelegramChat(ctx context.Context, userID string, chatID *int64) (*models.Profile, error) {
	if err := s.users.SetTelegramChat(ctx, userID, chatID); err != nil {
		return nil, fmt.Errorf("set telegram chat: %w", err)
	}
	return s.users.Get(ctx, userID)
}

// SweepExpired чистит истёкшие/отозванные сессии (вызывается планировщиком).
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if mem, ok := s.revoked.(*MemRevocations); ok {
		mem.GC()
	}
	return n, nil
}

// issue создаёт refresh-сессию и access-токен. Пустой family начинает новую цепочку.
func (s *Service) issue(ctx context.Context, u *models.User, userAgent, family string) (*Tokens, error) {
	now := s.now()
	plain, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	if len(userAgent) > 255 {
		userAgent = userAgent[:255]
	}
	as := &models.AuthSession{
		UserID:    u.ID,
		FamilyID:  family,
		TokenHash: hash,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.opt.RefreshTTL),
	}
	if err := s.sessions.Create(ctx, as); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	access, claims, err := signAccess(s.opt.Secret, u.ID, as.ID, as.FamilyID, u.Email, now, s.opt.AccessTTL)
	if err != nil {
		return nil, err
	}
	profile, err := s.users.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: plain,
		TokenType:    "Bearer",
		ExpiresAt:    claims.ExpiresAt.Time,
		ExpiresIn:    int64(s.opt.AccessTTL / time.Second),
		User:         profile,
	}, nil
}
