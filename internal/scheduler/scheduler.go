package scheduler

import (
	"fmt"
	"log"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/cleanup"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/config"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily retention cleanup.
type Scheduler struct {
	cron      *cron.Cron
	cleanup   *cleanup.Service
	config    *config.Config
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(cleanupService *cleanup.Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cleanup: cleanupService,
		config:  cfg,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	if !s.config.Maintenance.Enabled {
		log.Println("Scheduler: Maintenance is disabled in configuration")
		return nil
	}

	cronSpec := s.parseDailyRunTime(s.config.Maintenance.DailyRunTime)

	_, err := s.cron.AddFunc(cronSpec, func() {
		log.Println("Scheduler: Starting daily cleanup...")
		if err := s.runCleanup(); err != nil {
			log.Printf("Scheduler: Daily cleanup failed: %v", err)
		} else {
			log.Println("Scheduler: Daily cleanup completed successfully")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: Started with daily run at %s (cron: %s)", s.config.Maintenance.DailyRunTime, cronSpec)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

func (s *Scheduler) runCleanup() error {
	cfg := cleanup.Config{
		JobRetentionDays: s.config.Maintenance.JobRetentionDays,
		OrphanGraceDays:  s.config.Maintenance.OrphanGraceDays,
		MaxDeletionCount: s.config.Maintenance.MaxDeletionsPerRun,
	}
	_, err := s.cleanup.Run(cfg)
	return err
}

// RunNow immediately executes the cleanup (for manual trigger)
func (s *Scheduler) RunNow() (*cleanup.Result, error) {
	log.Println("Scheduler: Manual trigger - starting cleanup...")
	cfg := cleanup.Config{
		JobRetentionDays: s.config.Maintenance.JobRetentionDays,
		OrphanGraceDays:  s.config.Maintenance.OrphanGraceDays,
		MaxDeletionCount: s.config.Maintenance.MaxDeletionsPerRun,
	}
	return s.cleanup.Run(cfg)
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "03:00" -> "0 3 * * *" (run at 3:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Printf("Scheduler: Failed to parse time '%s', using default 03:00", timeStr)
	return "0 3 * * *"
}
