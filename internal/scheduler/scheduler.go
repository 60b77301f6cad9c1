package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"briefcast/internal/guard"
	"briefcast/internal/logging"
	"briefcast/internal/queue"
	"briefcast/internal/runner"
	"briefcast/internal/services"
)

// Scheduler admits new jobs into the queue: it reserves cap headroom, creates
// the durable record, and hands the job to the runner. Work functions are
// registered per kind before the daemon starts accepting requests.
type Scheduler struct {
	store  *queue.Store
	guard  *guard.Guard
	runner *runner.Runner
	logger *slog.Logger

	mu    sync.RWMutex
	works map[queue.Kind]runner.Work
}

// New constructs a scheduler. Register work functions before calling Enqueue.
func New(store *queue.Store, g *guard.Guard, r *runner.Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		guard:  g,
		runner: r,
		logger: logging.NewComponentLogger(logger, "scheduler"),
		works:  make(map[queue.Kind]runner.Work),
	}
}

// Register binds a work function to a job kind. Later registrations replace
// earlier ones.
func (s *Scheduler) Register(kind queue.Kind, work runner.Work) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.works[kind] = work
}

func (s *Scheduler) workFor(kind queue.Kind) (runner.Work, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	work, ok := s.works[kind]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "enqueue",
			fmt.Sprintf("no work registered for kind %q", kind), nil)
	}
	return work, nil
}

// Enqueue admits a standalone job: cap reservation first, then the durable
// record, then runner submission. A cap denial surfaces synchronously as
// services.ErrCapExceeded and leaves no record behind.
func (s *Scheduler) Enqueue(ctx context.Context, kind queue.Kind, inputJSON string) (*queue.Job, error) {
	return s.enqueue(ctx, kind, inputJSON, "")
}

// EnqueueForSeries admits one series step, linked to its parent series.
// Series steps draw from the same production cap as standalone jobs.
func (s *Scheduler) EnqueueForSeries(ctx context.Context, kind queue.Kind, inputJSON, seriesID string) (*queue.Job, error) {
	return s.enqueue(ctx, kind, inputJSON, seriesID)
}

func (s *Scheduler) enqueue(ctx context.Context, kind queue.Kind, inputJSON, seriesID string) (*queue.Job, error) {
	work, err := s.workFor(kind)
	if err != nil {
		return nil, err
	}

	if err := s.guard.TryReserve(ctx); err != nil {
		return nil, err
	}

	job, err := s.store.NewJob(ctx, kind, inputJSON, seriesID)
	if err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	if err := s.runner.Submit(job.ID, work); err != nil {
		// The record stays queued; the startup reconciliation pass or a
		// queue clear handles it if the daemon never picks it up again.
		s.logger.Error("runner rejected job",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldKind, string(kind)),
			logging.Error(err),
		)
		return nil, fmt.Errorf("submit job %s: %w", job.ID, err)
	}

	s.logger.Info("job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldKind, string(kind)),
		logging.String(logging.FieldSeriesID, seriesID),
	)
	return job, nil
}

// Await blocks until the job reaches a terminal status.
func (s *Scheduler) Await(ctx context.Context, jobID string) (*queue.Job, error) {
	return s.runner.AwaitTerminal(ctx, jobID)
}
