package repo

import (
	"context"
	"time"

	"tasktrack/internal/models"

	"gorm.io/gorm"
)

// SessionStore хранит выданные refresh-токены.
type SessionStore struct{ db *gorm.DB }

func NewSessionStore(db *gorm.DB) *SessionStore { return &SessionStore{db: db} }

func (s *SessionStore) Create(ctx context.Context, as *models.AuthSession) error {
	return s.db.WithContext(ctx).Create(as).Error
}

func (s *SessionStore) FindByHash(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	var res models.AuthSession
	err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&res).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*models.AuthSession, error) {
	var res models.AuthSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&res).Error; err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

// Revoke помечает сессию отозванной; повторный вызов ничего не меняет.
func (s *SessionStore) Revoke(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at.UTC()).Error
}

func (s *SessionStore) RevokeAll(ctx context.Context, userID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.AuthSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at.UTC()).Error
}

// DeleteExpired чистит истёкшие и отозванные сессии.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now.UTC()).
		Delete(&models.AuthSession{})
	return res.RowsAffected, res.Error
}
