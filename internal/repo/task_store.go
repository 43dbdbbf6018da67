package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tasktrack/internal/models"
)

// TaskStore — CRUD задач; все изменения пишутся в журнал аудита.
type TaskStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskStore(db *gorm.DB) *TaskStore { return &TaskStore{db: db, now: time.Now} }

// ListByUser — все задачи владельца, новые сверху.
func (s *TaskStore) ListByUser(ctx context.Context, userID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	var t models.Task
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, actorID string, t *models.Task) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return record(tx, models.TableTasks, t.ID, models.ActionInsert, actorID, nil, t)
	})
}

// Update загружает задачу владельца, применяет mutate и сохраняет.
// Если mutate вернул ошибку, ничего не пишется.
func (s *TaskStore) Update(ctx context.Context, actorID, userID, id string, mutate func(*models.Task) error) (*models.Task, error) {
	var out models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.Task
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&cur).Error; err != nil {
			return notFound(err)
		}
		before := cur
		if err := mutate(&cur); err != nil {
			return err
		}
		if err := tx.Save(&cur).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		out = cur
		return record(tx, models.TableTasks, cur.ID, models.ActionUpdate, actorID, before, cur)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete удаляет задачу только у владельца (user_id проверяется в WHERE).
func (s *TaskStore) Delete(ctx context.Context, actorID, userID, id string) (*models.Task, error) {
	var gone models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&gone).Error; err != nil {
			return notFound(err)
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return captureDeleted(tx, models.TableTasks, gone.ID, gone.UserID, actorID, gone, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &gone, nil
}

// ListOpenScheduled — незавершённые задачи с любой привязкой ко времени (для напоминаний).
func (s *TaskStore) ListOpenScheduled(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("completed = ?", false).
		Where("scheduled_at IS NOT NULL OR due_date IS NOT NULL OR legacy_time IS NOT NULL").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Task{}).Count(&n).Error
	return n, err
}
