package client

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"tasktrack/internal/models"
	"tasktrack/internal/realtime"
	"tasktrack/internal/usage"
)

// Usage — записи расхода текущего пользователя.
type Usage struct {
	collection[models.UsageRecord]
	auth *Auth
}

func NewUsage(a *Auth) *Usage {
	u := &Usage{
		collection: collection[models.UsageRecord]{id: func(r models.UsageRecord) string { return r.ID }},
		auth:       a,
	}
	u.follow(a, u.Refetch)
	return u
}

func (u *Usage) Refetch(ctx context.Context) error {
	u.own(u.auth.userID())
	u.begin()
	var list []models.UsageRecord
	if _, err := u.auth.call(ctx, http.MethodGet, "/api/v1/usage", nil, &list); err != nil {
		return u.fail(err)
	}
	u.replaceAll(list)
	return nil
}

// Create сначала ищет в кэше запись на ту же дату и офис (без учёта регистра);
// найденная обновляется, а в Result.Conflict возвращается причина.
// Поля проверяются до любого сетевого вызова.
func (u *Usage) Create(ctx context.Context, in usage.Input) (*usage.Result, error) {
	if err := checkInput(in); err != nil {
		return nil, u.fail(err)
	}
	u.own(u.auth.userID())
	key := models.OfficeKey(in.Office)
	if existing, ok := u.find(func(r models.UsageRecord) bool {
		return r.Date == in.Date && models.OfficeKey(r.Office) == key
	}); ok {
		rec, err := u.Update(ctx, existing.ID, usage.Patch{
			StartBalance: in.StartBalance,
			EndBalance:   in.EndBalance,
			WorkHours:    in.WorkHours,
			Notes:        in.Notes,
		})
		if err != nil {
			return nil, err
		}
		return &usage.Result{Record: rec, Conflict: &usage.Conflict{
			Reason:     fmt.Sprintf("a record for %s at %q already exists; it was updated instead", rec.Date, rec.Office),
			ExistingID: rec.ID,
		}}, nil
	}

	var res usage.Result
	if _, err := u.auth.call(ctx, http.MethodPost, "/api/v1/usage", in, &res); err != nil {
		return nil, u.fail(err)
	}
	if res.Record == nil {
		return nil, u.fail(&Error{Message: "malformed server response"})
	}
	if res.Conflict != nil {
		u.put(*res.Record)
	} else {
		u.prepend(*res.Record)
	}
	return &res, nil
}

func (u *Usage) Update(ctx context.Context, id string, p usage.Patch) (*models.UsageRecord, error) {
	for field, v := range map[string]*float64{"start_balance": p.StartBalance, "end_balance": p.EndBalance, "work_hours": p.WorkHours} {
		if v != nil && (math.IsNaN(*v) || *v < 0) {
			return nil, u.fail(invalid(field, "must be a non-negative number"))
		}
	}
	if p.Office != nil && strings.TrimSpace(*p.Office) == "" {
		return nil, u.fail(invalid("office", "required"))
	}
	var out models.UsageRecord
	if _, err := u.auth.call(ctx, http.MethodPatch, "/api/v1/usage/"+url.PathEscape(id), p, &out); err != nil {
		return nil, u.fail(err)
	}
	u.put(out)
	return &out, nil
}

func (u *Usage) Delete(ctx context.Context, id string) error {
	if _, err := u.auth.call(ctx, http.MethodDelete, "/api/v1/usage/"+url.PathEscape(id), nil, nil); err != nil {
		return u.fail(err)
	}
	u.remove(id)
	return nil
}

func (u *Usage) Watch(ctx context.Context) error {
	return u.auth.Watch(ctx, func(ev Change) {
		if ev.Name != realtime.EventChange || ev.Table != models.TableUsage {
			return
		}
		_ = u.Refetch(ctx)
	})
}

func checkInput(in usage.Input) error {
	switch {
	case in.StartBalance == nil:
		return invalid("start_balance", "required")
	case in.EndBalance == nil:
		return invalid("end_balance", "required")
	case strings.TrimSpace(in.Office) == "":
		return invalid("office", "required")
	case strings.TrimSpace(in.Date) == "":
		return invalid("date", "required")
	}
	for field, v := range map[string]*float64{"start_balance": in.StartBalance, "end_balance": in.EndBalance, "work_hours": in.WorkHours} {
		if v != nil && (math.IsNaN(*v) || *v < 0) {
			return invalid(field, "must be a non-negative number")
		}
	}
	return nil
}
