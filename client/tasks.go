package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"tasktrack/internal/models"
	"tasktrack/internal/realtime"
	"tasktrack/internal/tasks"
)

// Tasks — задачи текущего пользователя.
type Tasks struct {
	collection[models.Task]
	auth *Auth
}

func NewTasks(a *Auth) *Tasks {
	t := &Tasks{
		collection: collection[models.Task]{id: func(t models.Task) string { return t.ID }},
		auth:       a,
	}
	t.follow(a, t.Refetch)
	return t
}

func (t *Tasks) Refetch(ctx context.Context) error {
	t.own(t.auth.userID())
	t.begin()
	var list []models.Task
	if _, err := t.auth.call(ctx, http.MethodGet, "/api/v1/tasks", nil, &list); err != nil {
		return t.fail(err)
	}
	t.replaceAll(list)
	return nil
}

func (t *Tasks) Create(ctx context.Context, in tasks.Input) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, t.fail(invalid("title", "is required"))
	}
	if in.Priority != "" {
		if _, ok := models.ParsePriority(in.Priority); !ok {
			return nil, t.fail(invalid("priority", "must be one of low, medium, high"))
		}
	}
	t.own(t.auth.userID())
	var out models.Task
	if _, err := t.auth.call(ctx, http.MethodPost, "/api/v1/tasks", in, &out); err != nil {
		return nil, t.fail(err)
	}
	t.prepend(out)
	return &out, nil
}

func (t *Tasks) Update(ctx context.Context, id string, p tasks.Patch) (*models.Task, error) {
	var out models.Task
	if _, err := t.auth.call(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(id), p, &out); err != nil {
		return nil, t.fail(err)
	}
	t.put(out)
	return &out, nil
}

func (t *Tasks) Toggle(ctx context.Context, id string) (*models.Task, error) {
	var out models.Task
	if _, err := t.auth.call(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(id)+"/toggle", nil, &out); err != nil {
		return nil, t.fail(err)
	}
	t.put(out)
	return &out, nil
}

func (t *Tasks) Delete(ctx context.Context, id string) error {
	if _, err := t.auth.call(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil); err != nil {
		return t.fail(err)
	}
	t.remove(id)
	return nil
}

// Watch делает полный refetch на каждое событие об изменении задач;
// напоминания due_soon кэш не трогают.
func (t *Tasks) Watch(ctx context.Context) error {
	return t.auth.Watch(ctx, func(ev Change) {
		if ev.Name != realtime.EventChange || ev.Table != models.TableTasks {
			return
		}
		_ = t.Refetch(ctx)
	})
}
