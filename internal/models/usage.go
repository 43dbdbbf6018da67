package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageRecord — дневная запись расхода трафика.
// Одна запись на (пользователь, дата, офис без учёта регистра).
type UsageRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"size:36;not null;uniqueIndex:uniq_usage_user_date_office,priority:1;index" json:"user_id"`
	Date         string    `gorm:"size:10;not null;uniqueIndex:uniq_usage_user_date_office,priority:2" json:"date"`
	StartBalance float64   `gorm:"not null" json:"start_balance"`
	EndBalance   float64   `gorm:"not null" json:"end_balance"`
	Usage        float64   `gorm:"not null" json:"usage"`
	WorkHours    float64   `gorm:"not null" json:"work_hours"`
	Office       string    `gorm:"size:255;not null" json:"office"`
	OfficeKey    string    `gorm:"size:255;not null;uniqueIndex:uniq_usage_user_date_office,priority:3" json:"-"`
	Notes        *string   `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string { return "internet_records" }

func (r *UsageRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Recompute пересчитывает производные поля: расход и ключ офиса.
func (r *UsageRecord) Recompute() {
	r.Usage = r.StartBalance - r.EndBalance
	r.OfficeKey = OfficeKey(r.Office)
}

// OfficeKey — нормализованное имя офиса для сравнения.
func OfficeKey(office string) string {
	return strings.ToLower(strings.TrimSpace(office))
}
