// services/scheduler.go
package services

import (
	"log"

	"github.com/go-co-op/gocron/v2"
)

// StartCleanupScheduler runs the pending-report TTL sweep on its own
// schedule, one interval per TTL. Expired reports are already invisible
// to reads, so the sweep is pure housekeeping and may safely race with
// confirmations. The returned shutdown stops the scheduler.
func (s *ReportService) StartCleanupScheduler() (shutdown func() error, err error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Cfg.PendingTTL),
		gocron.NewTask(func() {
			deleted, err := s.CleanupExpired()
			if err != nil {
				log.Printf("[Scheduler] Pending report sweep failed: %v", err)
				return
			}
			if deleted > 0 {
				log.Printf("[Scheduler] Cleaned up %d expired pending reports", deleted)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched.Shutdown, nil
}
