package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/metamate-app/metamate/internal/chat"
	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
	"github.com/metamate-app/metamate/internal/google"
)

// Scheduler runs the background jobs: materializing pending meetings into
// calendar events, sweeping idle sessions, and pruning the LLM cache.
type Scheduler struct {
	cron     *cron.Cron
	db       *db.DB
	calendar *google.CalendarClient
	sessions *chat.Store
	config   *config.Schedule
	jobs     map[string]cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new scheduler. The calendar client may be nil, in which case
// meeting materialization is skipped and meetings stay pending.
func New(database *db.DB, calendarClient *google.CalendarClient, sessions *chat.Store, cfg *config.Schedule, loc *time.Location) *Scheduler {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     c,
		db:       database,
		calendar: calendarClient,
		sessions: sessions,
		config:   cfg,
		jobs:     make(map[string]cron.EntryID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	meetingSpec := fmt.Sprintf("@every %dm", s.config.MeetingSyncMinutes)
	meetingID, err := s.cron.AddFunc(meetingSpec, s.materializeMeetings)
	if err != nil {
		return fmt.Errorf("failed to schedule meeting sync: %w", err)
	}
	s.jobs["meetings"] = meetingID
	log.Printf("Scheduled meeting sync every %d minutes", s.config.MeetingSyncMinutes)

	sessionSpec := fmt.Sprintf("@every %dm", s.config.SessionSweepMinutes)
	sessionID, err := s.cron.AddFunc(sessionSpec, s.sweepSessions)
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	s.jobs["sessions"] = sessionID
	log.Printf("Scheduled session sweep every %d minutes", s.config.SessionSweepMinutes)

	cacheSpec := fmt.Sprintf("@every %dm", s.config.CacheSweepMinutes)
	cacheID, err := s.cron.AddFunc(cacheSpec, s.cleanCache)
	if err != nil {
		return fmt.Errorf("failed to schedule cache cleanup: %w", err)
	}
	s.jobs["cache"] = cacheID
	log.Printf("Scheduled cache cleanup every %d minutes", s.config.CacheSweepMinutes)

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunMeetingSync triggers one meeting materialization pass immediately
func (s *Scheduler) RunMeetingSync() {
	s.materializeMeetings()
}

// materializeMeetings turns pending meeting tasks into calendar events with
// Meet links. Failures leave the task pending for the next pass.
func (s *Scheduler) materializeMeetings() {
	if s.calendar == nil {
		return
	}

	tasks, err := s.db.PendingMeetingTasks()
	if err != nil {
		log.Printf("Failed to load pending meetings: %v", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	log.Printf("Materializing %d pending meeting(s)", len(tasks))

	for _, task := range tasks {
		start := time.Now()
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		scheduled, err := s.calendar.CreateMeetingEvent(ctx, task)
		cancel()

		if err != nil {
			log.Printf("Failed to schedule meeting for task %s: %v", task.UniqueTaskID, err)
			s.db.LogUsage("calendar", "create_event", 0, 0, time.Since(start), err)
			continue
		}
		s.db.LogUsage("calendar", "create_event", 0, 0, time.Since(start), nil)

		rec := &db.MeetingRecord{
			ID:        scheduled.EventID,
			TaskID:    task.UniqueTaskID,
			Owner:     task.Owner,
			MeetLink:  scheduled.MeetLink,
			StartTime: scheduled.StartTime,
			EndTime:   scheduled.EndTime,
			Duration:  fmt.Sprintf("%d minutes", task.Meeting.Duration),
		}
		if err := s.db.SaveMeetingRecord(rec); err != nil {
			log.Printf("Failed to save meeting record for task %s: %v", task.UniqueTaskID, err)
			continue
		}

		if err := s.db.SetMeetingStatus(task.UniqueTaskID, "scheduled"); err != nil {
			log.Printf("Failed to mark meeting scheduled for task %s: %v", task.UniqueTaskID, err)
			continue
		}

		log.Printf("Scheduled meeting %s for task %s (%s)", scheduled.EventID, task.UniqueTaskID, scheduled.MeetLink)
	}
}

// sweepSessions drops idle chat sessions
func (s *Scheduler) sweepSessions() {
	if n := s.sessions.Sweep(); n > 0 {
		log.Printf("Swept %d idle session(s)", n)
	}
}

// cleanCache removes expired LLM cache entries
func (s *Scheduler) cleanCache() {
	if err := s.db.CleanExpiredCache(); err != nil {
		log.Printf("Failed to clean LLM cache: %v", err)
	}
}
