package usage

import (
	"context"
	"errors"
	"fmt"
	"math"
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

// Input — тело создания записи. Балансы обязательны.
type Input struct {
	Date         string   `json:"date"`
	StartBalance *float64 `json:"start_balance"`
	EndBalance   *float64 `json:"end_balance"`
	WorkHours    *float64 `json:"work_hours,omitempty"`
	Office       string   `json:"office"`
	Notes        *string  `json:"notes,omitempty"`
}

type Patch struct {
	Date         *string  `json:"date,omitempty"`
	StartBalance *float64 `json:"start_balance,omitempty"`
	EndBalance   *float64 `json:"end_balance,omitempty"`
	WorkHours    *float64 `json:"work_hours,omitempty"`
	Office       *string  `json:"office,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

// Conflict — создание превратилось в обновление существующей записи.
type Conflict struct {
	Reason     string `json:"reason"`
	ExistingID string `json:"existing_id"`
}

type Result struct {
	Record   *models.UsageRecord `json:"record"`
	Conflict *Conflict           `json:"conflict,omitempty"`
}

type Service struct {
	store *repo.UsageStore
	hub   realtime.Publisher
	now   func() time.Time
}

func NewService(store *repo.UsageStore, hub realtime.Publisher) *Service {
	return &Service{store: store, hub: hub, now: time.Now}
}

func (s *Service) List(ctx context.Context, p access.Principal, f views.UsageFilter) ([]models.UsageRecord, error) {
	all, err := s.store.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return views.FilterUsage(all, f), nil
}

func (s *Service) Summary(ctx context.Context, p access.Principal, f views.UsageFilter) (views.Summary, error) {
	list, err := s.List(ctx, p, f)
	if err != nil {
		return views.Summary{}, err
	}
	return views.UsageSummary(list), nil
}

func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*models.UsageRecord, error) {
	return s.store.Get(ctx, p.UserID, id)
}

// Create: если у пользователя уже есть запись на ту же дату и офис
// (без учёта регистра), она обновляется вместо вставки.
func (s *Service) Create(ctx context.Context, p access.Principal, in Input) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	existing, err := s.store.FindByDateOffice(ctx, p.UserID, in.Date, in.Office)
	switch {
	case err == nil:
		return s.overwrite(ctx, p, existing.ID, in)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	r := &models.UsageRecord{
		UserID:       p.UserID,
		Date:         in.Date,
		StartBalance: *in.StartBalance,
		EndBalance:   *in.EndBalance,
		Office:       strings.TrimSpace(in.Office),
		Notes:        blankToNil(in.Notes),
	}
	if in.WorkHours != nil {
		r.WorkHours = *in.WorkHours
	}
	if err := s.store.Create(ctx, p.UserID, r); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// параллельная вставка успела раньше
			existing, ferr := s.store.FindByDateOffice(ctx, p.UserID, in.Date, in.Office)
			if ferr != nil {
				return nil, err
			}
			return s.overwrite(ctx, p, existing.ID, in)
		}
		return nil, err
	}
	s.publish(p.UserID, realtime.ActionInsert, r.ID)
	return &Result{Record: r}, nil
}

func (s *Service) overwrite(ctx context.Context, p access.Principal, id string, in Input) (*Result, error) {
	patch := Patch{
		StartBalance: in.StartBalance,
		EndBalance:   in.EndBalance,
		WorkHours:    in.WorkHours,
		Notes:        in.Notes,
	}
	r, err := s.Update(ctx, p, id, patch)
	if err != nil {
		return nil, err
	}
	return &Result{Record: r, Conflict: &Conflict{
		Reason:     fmt.Sprintf("a record for %s at %q already exists; it was updated instead", r.Date, r.Office),
		ExistingID: r.ID,
	}}, nil
}

// Update применяет только переданные поля; usage пересчитывается в хранилище.
func (s *Service) Update(ctx context.Context, p access.Principal, id string, patch Patch) (*models.UsageRecord, error) {
	r, err := s.store.Update(ctx, p.UserID, p.UserID, id, func(r *models.UsageRecord) error {
		if !access.CanAccess(p, r.UserID) {
			return models.ErrForbidden
		}
		return applyPatch(r, patch)
	})
	if err != nil {
		return nil, err
	}
	s.publish(p.UserID, realtime.ActionUpdate, r.ID)
	return r, nil
}

func (s *Service) Delete(ctx context.Context, p access.Principal, id string) error {
	r, err := s.store.Delete(ctx, p.UserID, p.UserID, id)
	if err != nil {
		return err
	}
	s.publish(p.UserID, realtime.ActionDelete, r.ID)
	return nil
}

func applyPatch(r *models.UsageRecord, p Patch) error {
	if p.Date != nil {
		if err := validateDate(*p.Date); err != nil {
			return err
		}
		r.Date = *p.Date
	}
	if p.StartBalance != nil {
		if err := nonNegative("start_balance", *p.StartBalance); err != nil {
			return err
		}
		r.StartBalance = *p.StartBalance
	}
	if p.EndBalance != nil {
		if err := nonNegative("end_balance", *p.EndBalance); err != nil {
			return err
		}
		r.EndBalance = *p.EndBalance
	}
	if p.WorkHours != nil {
		if err := nonNegative("work_hours", *p.WorkHours); err != nil {
			return err
		}
		r.WorkHours = *p.WorkHours
	}
	if p.Office != nil {
		office := strings.TrimSpace(*p.Office)
		if office == "" {
			return models.Invalid("office", "is required")
		}
		r.Office = office
	}
	if p.Notes != nil {
		r.Notes = blankToNil(p.Notes)
	}
	return nil
}

func validateInput(in Input) error {
	if err := validateDate(in.Date); err != nil {
		return err
	}
	if in.StartBalance == nil {
		return models.Invalid("start_balance", "is required")
	}
	if in.EndBalance == nil {
		return models.Invalid("end_balance", "is required")
	}
	if err := nonNegative("start_balance", *in.StartBalance); err != nil {
		return err
	}
	if err := nonNegative("end_balance", *in.EndBalance); err != nil {
		return err
	}
	if in.WorkHours != nil {
		if err := nonNegative("work_hours", *in.WorkHours); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.Office) == "" {
		return models.Invalid("office", "is required")
	}
	return nil
}

func validateDate(d string) error {
	if _, err := time.Parse(models.DateLayout, d); err != nil {
		return models.Invalid("date", "must be YYYY-MM-DD")
	}
	return nil
}

func nonNegative(field string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return models.Invalid(field, "must be a non-negative number")
	}
	return nil
}

func (s *Service) publish(userID string, action realtime.Action, id string) {
	logs.Logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"table":     models.TableUsage,
		"record_id": id,
	}).Debugf("usage record %s", strings.ToLower(string(action)))
	if s.hub != nil {
		s.hub.Publish(userID, realtime.Event{Table: models.TableUsage, Action: action, RecordID: id})
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
