package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tasktrack/internal/models"
)

var (
	ErrNotFound = models.ErrNotFound
	ErrConflict = models.ErrConflict
)

// notFound переводит gorm.ErrRecordNotFound в доменную ошибку.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// duplicate переводит нарушение уникальности в ErrConflict (нужен TranslateError).
func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return datatypes.JSON(b), nil
}

// record пишет строку журнала в рамках транзакции tx.
func record(tx *gorm.DB, table, recordID string, action models.AuditAction, actorID string, before, after any) error {
	oldData, err := snapshot(before)
	if err != nil {
		return err
	}
	newData, err := snapshot(after)
	if err != nil {
		return err
	}
	entry := models.AuditLog{
		Table:    table,
		RecordID: recordID,
		Action:   action,
		ActorID:  actorID,
		OldData:  oldData,
		NewData:  newData,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit %s %s: %w", action, table, err)
	}
	return nil
}

// captureDeleted кладёт копию строки в корзину и пишет DELETE в журнал.
func captureDeleted(tx *gorm.DB, table, recordID, ownerID, actorID string, row any, at time.Time) error {
	data, err := snapshot(row)
	if err != nil {
		return err
	}
	dr := models.DeletedRecord{
		Table:     table,
		RecordID:  recordID,
		UserID:    ownerID,
		Data:      data,
		DeletedBy: actorID,
		DeletedAt: at.UTC(),
	}
	if err := tx.Create(&dr).Error; err != nil {
		return fmt.Errorf("capture deleted %s: %w", table, err)
	}
	return record(tx, table, recordID, models.ActionDelete, actorID, row, nil)
}
