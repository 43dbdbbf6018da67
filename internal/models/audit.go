package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	ActionInsert  AuditAction = "INSERT"
	ActionUpdate  AuditAction = "UPDATE"
	ActionDelete  AuditAction = "DELETE"
	ActionRestore AuditAction = "RESTORE"
	ActionPurge   AuditAction = "PURGE"
	ActionAdmin   AuditAction = "ADMIN"
)

// Имена отслеживаемых таблиц.
const (
	TableTasks    = "todos"
	TableUsage    = "internet_records"
	TableProfiles = "user_profiles"
)

// AuditLog — запись журнала изменений (только добавление).
type AuditLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Table     string         `gorm:"column:table_name;size:64;index;not null" json:"table_name"`
	RecordID  string         `gorm:"size:36;index" json:"record_id"`
	Action    AuditAction    `gorm:"size:16;index;not null" json:"action"`
	ActorID   string         `gorm:"size:36;index" json:"actor_id"`
	OldData   datatypes.JSON `json:"old_data,omitempty"`
	NewData   datatypes.JSON `json:"new_data,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// DeletedRecord — копия удалённой строки для восстановления.
type DeletedRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Table     string         `gorm:"column:table_name;size:64;index;not null" json:"table_name"`
	RecordID  string         `gorm:"size:36;index" json:"record_id"`
	UserID    string         `gorm:"size:36;index" json:"user_id"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	DeletedBy string         `gorm:"size:36" json:"deleted_by"`
	DeletedAt time.Time      `gorm:"index" json:"deleted_at"`
}
