package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tasktrack/internal/logs"
)

// Scheduler — обёртка над cron для периодических фоновых задач.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: 30 * time.Second,
	}
}

// Every запускает job раз в interval (не чаще раза в секунду).
// Каждый запуск получает свой контекст с таймаутом; ошибка пишется в лог.
func (s *Scheduler) Every(interval time.Duration, name string, job func(ctx context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%s: interval must be positive", name)
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := job(ctx); err != nil {
			logs.Logger.WithField("job", name).Errorf("scheduled job failed: %v", err)
		}
	})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop ждёт завершения уже запущенных заданий.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
