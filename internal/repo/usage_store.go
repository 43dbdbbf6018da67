package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tasktrack/internal/models"
)

// UsageStore — записи расхода трафика.
type UsageStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUsageStore(db *gorm.DB) *UsageStore { return &UsageStore{db: db, now: time.Now} }

func (s *UsageStore) ListByUser(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	var rows []models.UsageRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc, created_at desc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return rows, nil
}

func (s *UsageStore) Get(ctx context.Context, userID, id string) (*models.UsageRecord, error) {
	var r models.UsageRecord
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// FindByDateOffice ищет запись по (дата, офис без учёта регистра).
func (s *UsageStore) FindByDateOffice(ctx context.Context, userID, date, office string) (*models.UsageRecord, error) {
	var r models.UsageRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ? AND office_key = ?", userID, date, models.OfficeKey(office)).
		First(&r).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *UsageStore) Create(ctx context.Context, actorID string, r *models.UsageRecord) error {
	r.Recompute()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create usage: %w", duplicate(err))
		}
		return record(tx, models.TableUsage, r.ID, models.ActionInsert, actorID, nil, r)
	})
}

// Update применяет mutate к записи владельца; производные поля пересчитываются всегда.
func (s *UsageStore) Update(ctx context.Context, actorID, userID, id string, mutate func(*models.UsageRecord) error) (*models.UsageRecord, error) {
	var out models.UsageRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.UsageRecord
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&cur).Error; err != nil {
			return notFound(err)
		}
		before := cur
		if err := mutate(&cur); err != nil {
			return err
		}
		cur.Recompute()
		if err := tx.Save(&cur).Error; err != nil {
			return fmt.Errorf("update usage: %w", duplicate(err))
		}
		out = cur
		return record(tx, models.TableUsage, cur.ID, models.ActionUpdate, actorID, before, cur)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UsageStore) Delete(ctx context.Context, actorID, userID, id string) (*models.UsageRecord, error) {
	var gone models.UsageRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&gone).Error; err != nil {
			return notFound(err)
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.UsageRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete usage: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return captureDeleted(tx, models.TableUsage, gone.ID, gone.UserID, actorID, gone, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &gone, nil
}

func (s *UsageStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UsageRecord{}).Count(&n).Error
	return n, err
}
