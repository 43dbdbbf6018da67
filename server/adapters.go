package server

import (
	"context"
	"time"

	"tasktrack/internal/models"
	"tasktrack/internal/notify"
	"tasktrack/internal/realtime"
)

// hubSink отдаёт напоминания в realtime-хаб (аналог браузерного уведомления).
type hubSink struct {
	hub realtime.Publisher
	now func() time.Time
}

func newHubSink(hub realtime.Publisher) notify.Sink { return &hubSink{hub: hub, now: time.Now} }

func (s *hubSink) Name() string { return "realtime" }

func (s *hubSink) Notify(_ context.Context, r notify.Reminder) error {
	due := r.DueAt
	s.hub.Publish(r.UserID, realtime.Event{
		Table:    models.TableTasks,
		Action:   realtime.ActionDueSoon,
		RecordID: r.TaskID,
		Title:    r.Title,
		DueAt:    &due,
		At:       s.now(),
	})
	return nil
}
