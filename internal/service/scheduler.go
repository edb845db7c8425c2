package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rewards_webapp/internal/clock"
	"rewards_webapp/internal/logger"
	"rewards_webapp/internal/metrics"
	"rewards_webapp/internal/repository"

	"github.com/go-co-op/gocron/v2"
)

// ResetSweeper по расписанию сохраняет дневной сброс для всех устаревших записей.
// Корректность от него не зависит: каждое действие само применяет сброс
type ResetSweeper struct {
	sched gocron.Scheduler
	store repository.Store
	log   *slog.Logger
}

// NewResetSweeper - schedule в формате cron (5 полей, UTC)
func NewResetSweeper(store repository.Store, schedule string, clk clock.Clock) (*ResetSweeper, error) {
	if clk == nil {
		clk = clock.Real()
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC), gocron.WithClock(clk))
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	r := &ResetSweeper{sched: sched, store: store, log: logger.With("component", "reset_sweeper")}
	_, err = sched.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			if _, err := r.Sweep(context.Background()); err != nil {
				r.log.Error("daily reset sweep failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("reset sweep job %q: %w", schedule, err)
	}
	return r, nil
}

func (r *ResetSweeper) Start() {
	r.sched.Start()
}

func (r *ResetSweeper) Stop() error {
	return r.sched.Shutdown()
}

// Sweep - один проход
func (r *ResetSweeper) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	started := time.Now()
	n, err := r.store.SweepDailyCounters(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SweptRecords.Add(float64(n))
	r.log.Info("daily reset sweep done", "records", n, "took", time.Since(started))
	return n, nil
}
