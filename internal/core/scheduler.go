package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job описывает периодическую задачу.
type Job func(ctx context.Context) error

type namedJob struct {
	name string
	run  Job
}

// Scheduler запускает задачи с фиксированным интервалом.
// Задачи одного тика выполняются параллельно, ошибки только логируются.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	jobs     []namedJob
	wg       sync.WaitGroup
}

// NewScheduler создает scheduler с заданным интервалом.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, logger: logger}
}

// Add добавляет задачу в расписание.
func (s *Scheduler) Add(name string, job Job) {
	s.jobs = append(s.jobs, namedJob{name: name, run: job})
}

// Start выполняет задачи сразу и затем на каждом тике до отмены контекста.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, job := range s.jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := job.run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled job failed", "job", job.name, "err", err)
			}
		}()
	}
}
