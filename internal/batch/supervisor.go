package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

// JobLister lists jobs by status.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// Supervisor is the control loop: the job rows are the only state, and it
// starts a worker for every running job that has none. Workers exit on
// their own when a job is paused, completes or errors.
type Supervisor struct {
	orch     *Orchestrator
	jobs     JobLister
	interval time.Duration

	mu     sync.Mutex
	active map[string]bool
	wg     sync.WaitGroup
}

// NewSupervisor creates a Supervisor polling every interval.
func NewSupervisor(orch *Orchestrator, jobs JobLister, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Supervisor{orch: orch, jobs: jobs, interval: interval, active: make(map[string]bool)}
}

// Run polls until ctx is cancelled, then waits for in-flight workers.
func (s *Supervisor) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "batch.supervisor"))
	log.Info("starting job supervisor", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			log.Info("job supervisor stopped")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll starts workers for running jobs without one and returns how many it
// started.
func (s *Supervisor) Poll(ctx context.Context) int {
	jobs, err := s.jobs.ListJobs(ctx, store.JobFilter{Statuses: []model.JobStatus{model.JobRunning}})
	if err != nil {
		zap.L().Error("batch: list running jobs", zap.Error(err))
		return 0
	}

	started := 0
	for _, j := range jobs {
		if !s.claim(j.ID) {
			continue
		}
		started++
		s.wg.Add(1)
		go func(id string) {
			defer s.wg.Done()
			defer s.release(id)
			res, err := s.orch.Run(ctx, id)
			if err != nil {
				zap.L().Error("batch: worker stopped", zap.String("job_id", id), zap.Error(err))
				return
			}
			zap.L().Info("batch: worker finished", zap.String("job_id", id), zap.String("status", string(res.Status)))
		}(j.ID)
	}
	return started
}

// Wait blocks until every started worker has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[id] {
		return false
	}
	s.active[id] = true
	return true
}

func (s *Supervisor) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}
