package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"amazon-scraper/logger"
	"amazon-scraper/storage"
)

// ErrJobNotFound is returned by control operations on an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("scheduler already started")

// ErrInvalidInterval is returned by AddJob for a non-positive interval.
var ErrInvalidInterval = errors.New("job interval must be positive")

// JobFunc is the work a job performs on each trigger.
type JobFunc func(ctx context.Context)

// JobStatus is a point-in-time view of one job for operators.
type JobStatus struct {
	ID       string     `json:"id"`
	Interval string     `json:"interval"`
	NextRun  time.Time  `json:"next_run"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	Paused   bool       `json:"paused"`
	Running  bool       `json:"running"`
}

type job struct {
	state   *storage.JobState
	fn      JobFunc
	running bool
}

// Scheduler triggers registered jobs on their recurring intervals.
//
// Job state is durably persisted through the JobStore so schedules survive
// restarts. Per job: at most one run is in flight at a time; a trigger that
// passed while the scheduler was down or the job was busy fires one late run
// if it is still inside the misfire grace window, otherwise it is skipped and
// the schedule advances. Multiple missed triggers collapse into at most one
// catch-up run.
type Scheduler struct {
	store storage.JobStore
	log   *logger.Logger
	tick  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	runWG   sync.WaitGroup
}

// New creates a stopped Scheduler over the given store.
func New(store storage.JobStore, log *logger.Logger) *Scheduler {
	return &Scheduler{
		store: store,
		log:   log.WithComponent("scheduler"),
		tick:  time.Second,
		now:   time.Now,
		jobs:  make(map[string]*job),
	}
}

// AddJob registers a recurring job. If the store already holds state for the
// id (from a previous process), the persisted schedule position is adopted
// and only trigger parameters are refreshed; otherwise a new schedule is
// created, due immediately when runNow is set.
func (s *Scheduler) AddJob(ctx context.Context, id string, interval, misfireGrace time.Duration, runNow bool, fn JobFunc) error {
	// advancePast steps forward by whole intervals, so a non-positive
	// interval would never terminate.
	if interval <= 0 {
		return ErrInvalidInterval
	}

	persisted, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}

	state := persisted
	if state == nil {
		next := s.now().Add(interval)
		if runNow {
			next = s.now()
		}
		state = &storage.JobState{
			ID:      id,
			NextRun: next,
		}
	}
	state.Interval = interval
	state.MisfireGrace = misfireGrace

	if err := s.store.SaveJob(ctx, state); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[id] = &job{state: state, fn: fn}
	s.mu.Unlock()

	s.log.Info().
		Str("job_id", id).
		Dur("interval", interval).
		Time("next_run", state.NextRun).
		Bool("restored", persisted != nil).
		Msg("Job registered")
	return nil
}

// Start launches the trigger loop. Failing to start leaves the system
// un-refreshed, so callers must treat an error as fatal.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.loopWG.Add(1)
	go s.loop(loopCtx)

	s.log.Info().Dur("tick", s.tick).Msg("Scheduler started")
	return nil
}

// Stop drains the scheduler: the trigger loop halts and Stop blocks until
// in-flight runs finish or the context expires. Runs are not cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	s.loopWG.Wait()

	done := make(chan struct{})
	go func() {
		s.runWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause suspends triggering for the job.
func (s *Scheduler) Pause(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, true)
}

// Resume re-enables a paused job. A due time that passed while paused is
// moved up to now so the job fires on the next tick.
func (s *Scheduler) Resume(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, false)
}

func (s *Scheduler) setPaused(ctx context.Context, id string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	j.state.Paused = paused
	if !paused && j.state.NextRun.Before(s.now()) {
		j.state.NextRun = s.now()
	}

	if err := s.store.SaveJob(ctx, j.state); err != nil {
		return err
	}

	s.log.Info().Str("job_id", id).Bool("paused", paused).Msg("Job pause state changed")
	return nil
}

// Jobs returns the status of every registered job.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, JobStatus{
			ID:       j.state.ID,
			Interval: j.state.Interval.String(),
			NextRun:  j.state.NextRun,
			LastRun:  j.state.LastRun,
			Paused:   j.state.Paused,
			Running:  j.running,
		})
	}
	return statuses
}

// Running reports whether the trigger loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

// fireDue evaluates every job once. A due job inside its grace window fires;
// one past the window is skipped and its schedule advanced. A busy job is
// left due and re-evaluated next tick, so the trigger queues behind the
// in-flight run without ever starting a second instance.
func (s *Scheduler) fireDue(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, j := range s.jobs {
		if j.state.Paused || j.running || j.state.NextRun.After(now) {
			continue
		}

		overdue := now.Sub(j.state.NextRun)
		if overdue > j.state.MisfireGrace {
			j.state.NextRun = advancePast(j.state.NextRun, j.state.Interval, now)
			s.persistLocked(ctx, j)
			s.log.Warn().
				Str("job_id", j.state.ID).
				Dur("overdue", overdue).
				Time("next_run", j.state.NextRun).
				Msg("Trigger missed beyond grace window, skipping")
			continue
		}

		j.running = true
		j.state.NextRun = advancePast(j.state.NextRun, j.state.Interval, now)
		s.persistLocked(ctx, j)

		// Runs get a fresh context: Stop drains them, it never cancels them.
		s.runWG.Add(1)
		go s.run(context.Background(), j)
	}
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.runWG.Done()

	id := j.state.ID
	s.log.Info().Str("job_id", id).Msg("Job run starting")
	start := s.now()

	j.fn(ctx)

	s.mu.Lock()
	j.running = false
	finished := s.now()
	j.state.LastRun = &finished
	s.persistLocked(ctx, j)
	s.mu.Unlock()

	s.log.Info().Str("job_id", id).Dur("elapsed", finished.Sub(start)).Msg("Job run finished")
}

func (s *Scheduler) persistLocked(ctx context.Context, j *job) {
	if err := s.store.SaveJob(ctx, j.state); err != nil {
		s.log.Error().Str("job_id", j.state.ID).Err(err).Msg("Failed to persist job state")
	}
}

// advancePast moves next forward by whole intervals until it is after now.
// Collapsing every missed interval into one step is what makes multiple
// missed triggers coalesce into a single catch-up run.
func advancePast(next time.Time, interval time.Duration, now time.Time) time.Time {
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}
