// Package scheduler runs the periodic maintenance jobs: regenerating
// invoice documents that failed to upload and purging dead sessions.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DocumentRetrier regenerates invoice documents missing from storage.
type DocumentRetrier interface {
	RetryMissingDocuments(ctx context.Context, limit int) (int, error)
}

// SessionPurger removes sessions that ended before cutoff.
type SessionPurger interface {
	PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config sets the job intervals.  A zero interval disables the job.
type Config struct {
	DocumentRetry time.Duration
	SessionPurge  time.Duration
	BatchSize     int
	JobTimeout    time.Duration
}

type Scheduler struct {
	sched    gocron.Scheduler
	docs     DocumentRetrier
	sessions SessionPurger
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func New(cfg Config, docs DocumentRetrier, sessions SessionPurger) (*Scheduler, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{sched: sched, docs: docs, sessions: sessions, cfg: cfg, ctx: ctx, cancel: cancel, now: time.Now}

	if docs != nil && cfg.DocumentRetry > 0 {
		if err := s.add("invoice-documents", cfg.DocumentRetry, s.RetryDocuments); err != nil {
			cancel()
			return nil, err
		}
	}
	if sessions != nil && cfg.SessionPurge > 0 {
		if err := s.add("session-purge", cfg.SessionPurge, s.PurgeSessions); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name string, every time.Duration, run func(context.Context) error) error {
	j, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
			defer cancel()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("scheduler: %s: %v", name, err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	log.Printf("scheduler: job %s (%s) every %s", name, j.ID(), every)
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.sched.Jobs()) }

func (s *Scheduler) Start() { s.sched.Start() }

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

// RetryDocuments runs one document retry batch.
func (s *Scheduler) RetryDocuments(ctx context.Context) error {
	n, err := s.docs.RetryMissingDocuments(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("scheduler: regenerated %d invoice document(s)", n)
	}
	return nil
}

// PurgeSessions deletes sessions that ended more than a day ago.
func (s *Scheduler) PurgeSessions(ctx context.Context) error {
	n, err := s.sessions.PurgeSessions(ctx, s.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("scheduler: purged %d session(s)", n)
	}
	return nil
}
