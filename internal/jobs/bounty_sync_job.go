package jobs

import (
	"context"
	"log"
	"time"

	"bounty-board/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// BountySyncJob owns the periodic ingestion schedule. Runs never overlap:
// the scheduler runs the job in singleton mode, so a tick that fires while
// a run is still in flight is rescheduled instead of starting a second run.
type BountySyncJob struct {
	service   *services.SyncService
	scheduler gocron.Scheduler
}

func NewBountySyncJob(service *services.SyncService) *BountySyncJob {
	return &BountySyncJob{service: service}
}

// Start schedules the sync job. The first run fires after startDelay so the
// HTTP server and database are up before the first external fetch; every
// subsequent run follows at the given interval.
func (j *BountySyncJob) Start(startDelay, interval time.Duration) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.runOnce),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartDateTime(time.Now().Add(startDelay))),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	j.scheduler = scheduler

	log.Printf("Bounty sync job scheduled: first run in %s, then every %s", startDelay, interval)
	return nil
}

func (j *BountySyncJob) runOnce() {
	report, err := j.service.Run(context.Background())
	if err != nil {
		// Fetch failures are retried at the next scheduled interval,
		// never immediately.
		log.Printf("Scheduled bounty sync failed: %v", err)
		return
	}
	log.Printf("Scheduled bounty sync: %d matched, %d synced, %d skipped, %d failed",
		report.Matched, report.Synced, report.Skipped, report.Failed)
}

// Stop shuts the scheduler down and waits for an in-flight run to finish
func (j *BountySyncJob) Stop() error {
	if j.scheduler == nil {
		return nil
	}
	return j.scheduler.Shutdown()
}
