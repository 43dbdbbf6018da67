package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tasktrack/internal/models"
)

// ProfileStore — учётные записи и профили.
type ProfileStore struct{ db *gorm.DB }

func NewProfileStore(db *gorm.DB) *ProfileStore { return &ProfileStore{db: db} }

// CreateUser создаёт учётку и профиль одной транзакцией.
func (s *ProfileStore) CreateUser(ctx context.Context, u *models.User, p *models.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return fmt.Errorf("create user: %w", duplicate(err))
		}
		p.UserID = u.ID
		p.Email = u.Email
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create profile: %w", duplicate(err))
		}
		return record(tx, models.TableProfiles, p.ID, models.ActionInsert, u.ID, nil, p)
	})
}

func (s *ProfileStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *ProfileStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Get — профиль по id учётной записи.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *ProfileStore) List(ctx context.Context) ([]models.Profile, error) {
	var rows []models.Profile
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return rows, nil
}

func (s *ProfileStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("last_login", at.UTC()).Error
}

// SetAdmin меняет флаг is_admin и пишет ADMIN в журнал.
// Права проверяет вызывающий (access.CanSetAdmin).
func (s *ProfileStore) SetAdmin(ctx context.Context, actorID, profileID string, isAdmin bool) (*models.Profile, error) {
	var out models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", profileID).First(&out).Error; err != nil {
			return notFound(err)
		}
		before := out
		out.IsAdmin = isAdmin
		if err := tx.Model(&out).Update("is_admin", isAdmin).Error; err != nil {
			return fmt.Errorf("set admin: %w", err)
		}
		return record(tx, models.TableProfiles, out.ID, models.ActionAdmin, actorID, before, out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BootstrapSuperAdmin выдаёт права супер-админа профилю с данным email,
// если супер-админа ещё нет. Возвращает true, если флаг был выставлен.
func (s *ProfileStore) BootstrapSuperAdmin(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	granted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Profile{}).Where("is_super_admin = ?", true).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		var p models.Profile
		if err := tx.Where("email = ?", email).First(&p).Error; err != nil {
			return notFound(err)
		}
		before := p
		p.IsAdmin, p.IsSuperAdmin = true, true
		if err := tx.Model(&p).Updates(map[string]any{"is_admin": true, "is_super_admin": true}).Error; err != nil {
			return fmt.Errorf("bootstrap super admin: %w", err)
		}
		granted = true
		return record(tx, models.TableProfiles, p.ID, models.ActionAdmin, p.UserID, before, p)
	})
	if err == ErrNotFound {
		return false, nil
	}
	return granted, err
}

func (s *ProfileStore) SetTelegramChat(ctx context.Context, userID string, chatID *int64) error {
	return s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("telegram_chat_id", chatID).Error
}

func (s *ProfileStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Profile{}).Count(&n).Error
	return n, err
}

// CountActiveSince — профили, заходившие после since.
func (s *ProfileStore) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("last_login >= ?", since.UTC()).Count(&n).Error
	return n, err
}
