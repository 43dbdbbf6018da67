package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User — учётная запись для входа (email + хэш пароля).
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Profile — публичные данные пользователя и флаги администрирования.
type Profile struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	Email          string     `gorm:"size:255;not null" json:"email"`
	DisplayName    string     `gorm:"size:255" json:"display_name"`
	IsAdmin        bool       `gorm:"not null;default:false" json:"is_admin"`
	IsSuperAdmin   bool       `gorm:"not null;default:false" json:"is_super_admin"`
	TelegramChatID *int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLogin      *time.Time `gorm:"index" json:"last_login,omitempty"`
}

func (Profile) TableName() string { return "user_profiles" }

func (p *Profile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// AuthSession — выданный refresh-токен (храним только sha256).
type AuthSession struct {
	ID     string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"index;size:36;not null"`
	// FamilyID общий для всей цепочки ротаций refresh-токена; новый при входе.
	FamilyID  string     `gorm:"index;size:36"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null"`
	UserAgent string     `gorm:"size:255"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time `gorm:"index"`
	CreatedAt time.Time
}

func (s *AuthSession) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.FamilyID == "" {
		s.FamilyID = s.ID
	}
	return nil
}

// Active — сессия не отозвана и не истекла к моменту now.
func (s *AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
