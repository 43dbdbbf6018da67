package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tasktrack/internal/access"
	"tasktrack/internal/logs"
	"tasktrack/internal/models"
	"tasktrack/internal/realtime"
	"tasktrack/internal/repo"
	"tasktrack/internal/views"
)

// Input — тело создания задачи.
type Input struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	DueDate     *string    `json:"due_date,omitempty"`
	DueTime     *string    `json:"due_time,omitempty"`
	Time        *string    `json:"time,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Patch — частичное обновление: nil — поле не трогаем,
// пустая строка очищает опциональное поле.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	DueTime     *string `json:"due_time,omitempty"`
	Time        *string `json:"time,omitempty"`
	ScheduledAt *string `json:"scheduled_at,omitempty"` // RFC3339
	Completed   *bool   `json:"completed,omitempty"`
}

type Service struct {
	store *repo.TaskStore
	hub   realtime.Publisher
	now   func() time.Time
}

func NewService(store *repo.TaskStore, hub realtime.Publisher) *Service {
	return &Service{store: store, hub: hub, now: time.Now}
}

func (s *Service) List(ctx context.Context, p access.Principal, f views.Filter) ([]models.Task, error) {
	all, err := s.store.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return views.Apply(all, f, s.now()), nil
}

func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*models.Task, error) {
	return s.store.Get(ctx, p.UserID, id)
}

func (s *Service) Progress(ctx context.Context, p access.Principal) ([]views.DayProgress, error) {
	all, err := s.store.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return views.Progress(all, s.now()), nil
}

func (s *Service) Create(ctx context.Context, p access.Principal, in Input) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.Invalid("title", "is required")
	}
	if len(title) > 255 {
		return nil, models.Invalid("title", "must be at most 255 characters")
	}
	prio := models.PriorityMedium
	if strings.TrimSpace(in.Priority) != "" {
		var ok bool
		if prio, ok = models.ParsePriority(in.Priority); !ok {
			return nil, models.Invalid("priority", "must be one of low, medium, high")
		}
	}
	t := &models.Task{
		UserID:      p.UserID,
		Title:       title,
		Description: blankToNil(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Priority:    prio,
		DueDate:     blankToNil(in.DueDate),
		DueTime:     blankToNil(in.DueTime),
		Time:        blankToNil(in.Time),
		ScheduledAt: in.ScheduledAt,
	}
	if err := validateSchedule(t); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p.UserID, t); err != nil {
		return nil, err
	}
	s.publish(p.UserID, realtime.ActionInsert, t.ID)
	return t, nil
}

// Update применяет только переданные поля; completed_at следует за completed.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, patch Patch) (*models.Task, error) {
	t, err := s.store.Update(ctx, p.UserID, p.UserID, id, func(t *models.Task) error {
		if !access.CanAccess(p, t.UserID) {
			return models.ErrForbidden
		}
		return s.applyPatch(t, patch)
	})
	if err != nil {
		return nil, err
	}
	s.publish(p.UserID, realtime.ActionUpdate, t.ID)
	return t, nil
}

// Toggle переключает completed; остальные поля не меняются.
func (s *Service) Toggle(ctx context.Context, p access.Principal, id string) (*models.Task, error) {
	t, err := s.store.Update(ctx, p.UserID, p.UserID, id, func(t *models.Task) error {
		if !access.CanAccess(p, t.UserID) {
			return models.ErrForbidden
		}
		t.SetCompleted(!t.Completed, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(p.UserID, realtime.ActionUpdate, t.ID)
	return t, nil
}

func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	t, err := s.store.Delete(ctx, p.UserID, p.UserID, id)
	if err != nil {
		return err
	}
	s.publish(p.UserID, realtime.ActionDelete, t.ID)
	return nil
}

func (s *Service) applyPatch(t *models.Task, p Patch) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return models.Invalid("title", "is required")
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = blankToNil(p.Description)
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Priority != nil {
		prio, ok := models.ParsePriority(*p.Priority)
		if !ok {
			return models.Invalid("priority", "must be one of low, medium, high")
		}
		t.Priority = prio
	}
	if p.DueDate != nil {
		t.DueDate = blankToNil(p.DueDate)
	}
	if p.DueTime != nil {
		t.DueTime = blankToNil(p.DueTime)
	}
	if p.Time != nil {
		t.Time = blankToNil(p.Time)
	}
	if p.ScheduledAt != nil {
		if strings.TrimSpace(*p.ScheduledAt) == "" {
			t.ScheduledAt = nil
		} else {
			at, err := time.Parse(time.RFC3339, *p.ScheduledAt)
			if err != nil {
				return models.Invalid("scheduled_at", "must be an RFC 3339 timestamp")
			}
			t.ScheduledAt = &at
		}
	}
	if p.Completed != nil && *p.Completed != t.Completed {
		t.SetCompleted(*p.Completed, s.now())
	}
	return validateSchedule(t)
}

func validateSchedule(t *models.Task) error {
	if t.DueDate != nil {
		if _, err := time.Parse(models.DateLayout, *t.DueDate); err != nil {
			return models.Invalid("due_date", "must be YYYY-MM-DD")
		}
	}
	for field, v := range map[string]*string{"due_time": t.DueTime, "time": t.Time} {
		if v == nil {
			continue
		}
		if _, err := time.Parse(models.ClockLayout, *v); err != nil {
			return models.Invalid(field, "must be HH:MM")
		}
	}
	return nil
}

func (s *Service) publish(userID string, action realtime.Action, id string) {
	logs.Logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"table":     models.TableTasks,
		"record_id": id,
	}).Debugf("task %s", strings.ToLower(string(action)))
	if s.hub != nil {
		s.hub.Publish(userID, realtime.Event{Table: models.TableTasks, Action: action, RecordID: id})
	}
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
