package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tasktrack/internal/models"
)

// AuditStore — чтение журнала и работа с корзиной удалённых строк.
type AuditStore struct{ db *gorm.DB }

func NewAuditStore(db *gorm.DB) *AuditStore { return &AuditStore{db: db} }

type AuditFilter struct {
	Table  string
	Action models.AuditAction
	Limit  int
}

// List — журнал от новых к старым.
func (s *AuditStore) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Order("created_at desc, id desc")
	if f.Table != "" {
		q = q.Where("table_name = ?", f.Table)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.AuditLog
	if err := q.Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return rows, nil
}

func (s *AuditStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

func (s *AuditStore) ListDeleted(ctx context.Context, limit int) ([]models.DeletedRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.DeletedRecord
	if err := s.db.WithContext(ctx).Order("deleted_at desc, id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list deleted: %w", err)
	}
	return rows, nil
}

func (s *AuditStore) CountDeleted(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DeletedRecord{}).Count(&n).Error
	return n, err
}

// Restored — итог восстановления: куда и под каким id вернулась строка.
type Restored struct {
	Table    string `json:"table_name"`
	RecordID string `json:"record_id"`
	UserID   string `json:"user_id"`
}

// Restore возвращает строку из корзины под новым id и удаляет запись корзины.
func (s *AuditStore) Restore(ctx context.Context, actorID string, deletedID uint) (*Restored, error) {
	var out Restored
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dr models.DeletedRecord
		if err := tx.Where("id = ?", deletedID).First(&dr).Error; err != nil {
			return notFound(err)
		}
		row, id, err := reviveRow(dr)
		if err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("restore %s: %w", dr.Table, duplicate(err))
		}
		if err := tx.Delete(&models.DeletedRecord{}, dr.ID).Error; err != nil {
			return fmt.Errorf("drop deleted record: %w", err)
		}
		out = Restored{Table: dr.Table, RecordID: *id, UserID: dr.UserID}
		return record(tx, dr.Table, *id, models.ActionRestore, actorID, nil, row)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Purge окончательно удаляет запись корзины.
func (s *AuditStore) Purge(ctx context.Context, actorID string, deletedID uint) (*models.DeletedRecord, error) {
	var dr models.DeletedRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", deletedID).First(&dr).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Delete(&models.DeletedRecord{}, dr.ID).Error; err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		return record(tx, dr.Table, dr.RecordID, models.ActionPurge, actorID, json.RawMessage(dr.Data), nil)
	})
	if err != nil {
		return nil, err
	}
	return &dr, nil
}

// reviveRow разбирает снимок в модель таблицы и сбрасывает id,
// чтобы BeforeCreate выдал новый. Возвращает указатель на поле id модели.
func reviveRow(dr models.DeletedRecord) (any, *string, error) {
	switch dr.Table {
	case models.TableTasks:
		var t models.Task
		if err := json.Unmarshal(dr.Data, &t); err != nil {
			return nil, nil, fmt.Errorf("decode task snapshot: %w", err)
		}
		t.ID = ""
		return &t, &t.ID, nil
	case models.TableUsage:
		var r models.UsageRecord
		if err := json.Unmarshal(dr.Data, &r); err != nil {
			return nil, nil, fmt.Errorf("decode usage snapshot: %w", err)
		}
		r.ID = ""
		// office_key не сериализуется в JSON
		r.Recompute()
		return &r, &r.ID, nil
	default:
		return nil, nil, models.Invalid("table_name", "restore is not supported for "+dr.Table)
	}
}
