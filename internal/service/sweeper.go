package service

import (
	"context"
	"time"

	"sonoff_server/internal/gateway"
	"sonoff_server/internal/logger"
	"sonoff_server/internal/models"
	"sonoff_server/internal/repository"
)

// TimerSweeper drops one-shot timers whose time has passed from stored devices.
// Devices are not re-synced.
type TimerSweeper struct {
	repo repository.DeviceRepo
	log  *logger.Logger
	now  func() time.Time
}

func NewTimerSweeper(repo repository.DeviceRepo, log *logger.Logger) *TimerSweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &TimerSweeper{repo: repo, log: log, now: time.Now}
}

// Run sweeps every tick until ctx is canceled.
func (s *TimerSweeper) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Warnw("timer_sweep_failed", "err", err)
			}
		}
	}
}

// Sweep runs one pass and returns how many timers were removed. Only the
// expired timers are deleted, so timers written since the listing and
// devices deleted since the listing are left as they are.
func (s *TimerSweeper) Sweep(ctx context.Context) (int, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	removed := 0
	for _, d := range devices {
		ids := expiredOnce(d.State.Timers, now)
		if len(ids) == 0 {
			continue
		}
		n, err := s.repo.DeleteTimers(ctx, d.ID, ids)
		if err != nil {
			s.log.Warnw("timer_sweep_delete_failed", "deviceid", d.ID, "err", err)
			continue
		}
		if n > 0 {
			s.log.Infow("timer_sweep", "deviceid", d.ID, "removed", n)
		}
		removed += n
	}
	return removed, nil
}

// expiredOnce returns the ids of one-shot timers whose time has passed.
// One-shot timers with an unparsable time are kept for the operator to fix.
func expiredOnce(timers []models.Timer, now time.Time) []string {
	var ids []string
	for _, t := range timers {
		if t.Type != models.TimerOnce || gateway.IsActive(t, now) {
			continue
		}
		if _, err := time.Parse(time.RFC3339, t.At); err == nil {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
