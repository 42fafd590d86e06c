package utils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobFunc is the task half of a scheduled job. It must honour ctx.
type JobFunc func(ctx context.Context) error

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
}

type dailyJob struct {
	name   string
	hour   int
	minute int
	run    JobFunc

	mu      sync.Mutex
	status  JobStatus
	running bool
}

// Scheduler fires registered jobs once a day at a fixed wall-clock time.
// It only owns the trigger; jobs stay callable without it.
type Scheduler struct {
	loc *time.Location
	log *zap.Logger
	now func() time.Time

	mu     sync.Mutex
	jobs   map[string]*dailyJob
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler evaluating hours in loc (UTC when nil).
func NewScheduler(loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{loc: loc, log: log, now: time.Now, jobs: map[string]*dailyJob{}}
}

// AddDaily registers fn to run every day at hour:minute.
func (s *Scheduler) AddDaily(name string, hour, minute int, fn JobFunc) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("scheduler: invalid time %02d:%02d for %s", hour, minute, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("scheduler: job %s already registered", name)
	}
	s.jobs[name] = &dailyJob{
		name:   name,
		hour:   hour,
		minute: minute,
		run:    fn,
		status: JobStatus{Name: name, Schedule: fmt.Sprintf("daily %02d:%02d %s", hour, minute, s.loc)},
	}
	return nil
}

// Start launches one timer loop per job. Loops exit when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels all loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job *dailyJob) {
	defer s.wg.Done()
	for {
		next := NextRun(s.now(), job.hour, job.minute, s.loc)
		job.mu.Lock()
		job.status.NextRun = next
		job.mu.Unlock()

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_ = s.execute(ctx, job)
		}
	}
}

// RunNow executes the named job immediately in the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %s", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job *dailyJob) (err error) {
	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return fmt.Errorf("scheduler: job %s is already running", job.name)
	}
	job.running = true
	job.mu.Unlock()

	runID := uuid.NewString()
	start := s.now()
	log := s.log.With(zap.String("job", job.name), zap.String("run_id", runID))
	log.Info("job started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		took := s.now().Sub(start)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			log.Error("job failed", zap.Duration("took", took), zap.Error(err))
		} else {
			log.Info("job finished", zap.Duration("took", took))
		}
		Metrics().ObserveJob(job.name, outcome, took)

		job.mu.Lock()
		job.running = false
		job.status.Runs++
		job.status.LastRun = &start
		job.status.LastRunID = runID
		job.status.LastError = ""
		if err != nil {
			job.status.LastError = err.Error()
		}
		job.mu.Unlock()
	}()

	return job.run(ctx)
}

// Status lists every job sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := make([]*dailyJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		st := j.status
		st.Running = j.running
		if st.NextRun.IsZero() {
			st.NextRun = NextRun(s.now(), j.hour, j.minute, s.loc)
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// NextRun returns the first hour:minute in loc strictly after from.
func NextRun(from time.Time, hour, minute int, loc *time.Location) time.Time {
	local := from.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
