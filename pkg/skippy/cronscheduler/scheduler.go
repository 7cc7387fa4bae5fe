package cronscheduler

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"

	"github.com/robfig/cron/v3"
)

// PromptHandler re-enters the Prompt Orchestrator with a scheduled job's
// text as the prompt. The scheduler never blocks the tick on completion,
// so PromptHandler is always invoked in its own goroutine.
type PromptHandler func(ctx context.Context, job *Job)

// Scheduler evaluates every non-disabled job once per minute, grounded on
// pkg/devclaw/scheduler/scheduler.go's Job/JobHandler/JobStorage shape,
// driven by robfig/cron's ticker rather than a hand-rolled one.
type Scheduler struct {
	store   *Store
	prompt  PromptHandler
	logger  *slog.Logger
	cron    *cron.Cron
	entryID cron.EntryID
}

func New(store *Store, prompt PromptHandler, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		prompt: prompt,
		logger: logger.With("component", "cronscheduler"),
		cron:   cron.New(),
	}
}

// Start registers the per-minute tick and begins evaluating jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc("* * * * *", func() { s.tick(ctx) })
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Remove(s.entryID)
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// Add validates and persists a new job. delay (seconds), if present in
// raw callers, must already have been normalized to a Time by the
// caller — see NormalizeOneTimeDelay.
func (s *Scheduler) Add(j *Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	return s.store.Add(j)
}

func (s *Scheduler) Remove(id string) error      { return s.store.Remove(id) }
func (s *Scheduler) List() ([]*Job, error)       { return s.store.List() }
func (s *Scheduler) Get(id string) (*Job, error) { return s.store.Get(id) }

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	jobs, err := s.store.ListActive()
	if err != nil {
		s.logger.Error("listing active jobs", "error", err)
		return
	}
	for _, j := range jobs {
		if !shouldFire(j, now) {
			continue
		}
		if err := s.store.MarkFired(j); err != nil {
			s.logger.Error("marking job fired", "job", j.ID, "error", err)
		}
		s.fire(ctx, j)
	}
}

// shouldFire implements the three per-type firing predicates.
func shouldFire(j *Job, now time.Time) bool {
	switch j.Type {
	case JobOneTime:
		return j.Time != nil && !now.Before(*j.Time)

	case JobInterval:
		if j.LastFired == nil {
			return true
		}
		return now.Sub(*j.LastFired) >= time.Duration(j.IntervalMS)*time.Millisecond

	case JobSchedule:
		if j.Schedule == nil {
			return false
		}
		if !j.Schedule.hasDay(now.Weekday()) || now.Hour() != j.Schedule.Hour || now.Minute() != j.Schedule.Minute {
			return false
		}
		if j.LastFired == nil {
			return true
		}
		// "last_fired not in this minute" — fire again only once per
		// matching minute, independent of tick jitter.
		return !sameMinute(*j.LastFired, now)

	default:
		return false
	}
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

// fire dispatches a job's action without blocking the tick: the
// scheduler never waits on job completion.
func (s *Scheduler) fire(ctx context.Context, j *Job) {
	switch j.Action.Kind {
	case ActionBash:
		go s.runBash(j)
	case ActionPrompt:
		if s.prompt != nil {
			go s.prompt(ctx, j)
		}
	}
}

func (s *Scheduler) runBash(j *Job) {
	runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/bash", "-c", j.Action.Command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		s.logger.Error("scheduled bash command failed", "job", j.ID, "error", err, "stderr", stderr.String())
	}
}

// NormalizeOneTimeDelay converts a "delay" field (seconds from now) into
// an absolute Time.
func NormalizeOneTimeDelay(delaySeconds float64) time.Time {
	return time.Now().UTC().Add(time.Duration(delaySeconds * float64(time.Second)))
}
