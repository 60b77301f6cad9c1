package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"briefcast/internal/logging"
	"briefcast/internal/queue"
)

// Work is a job's work function: input in, result payload or failure out.
// Progress may be called at any point to publish incremental status text;
// it has no effect once the job leaves running.
type Work func(ctx context.Context, job *queue.Job, progress ProgressFunc) (resultJSON string, err error)

// ProgressFunc publishes free-form progress text for a running job.
type ProgressFunc func(message string)

// ErrAlreadyRunning is returned when a job id is submitted while a prior
// submission is still in flight. The duplicate is never executed.
var ErrAlreadyRunning = errors.New("job already submitted")

// ErrNotQueued is returned when the submitted job is not in the queued state.
var ErrNotQueued = errors.New("job is not queued")

// fallbackPollInterval paces AwaitTerminal when the runner has no in-flight
// registration for the job (a record this process never executed).
const fallbackPollInterval = 500 * time.Millisecond

// Runner executes job work functions on a bounded worker pool, persisting
// every transition through the store. At most one work invocation per job id
// is in flight at a time.
type Runner struct {
	store  *queue.Store
	logger *slog.Logger
	slots  chan struct{}

	mu       sync.Mutex
	inflight map[string]chan struct{}
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New constructs a runner with the given worker pool size.
func New(store *queue.Store, logger *slog.Logger, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "runner"),
		slots:    make(chan struct{}, workers),
		inflight: make(map[string]chan struct{}),
	}
}

// Start prepares the runner's execution context. Work submitted before Start
// is rejected.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.baseCtx != nil {
		return
	}
	r.baseCtx, r.cancel = context.WithCancel(ctx)
}

// Stop cancels the execution context and waits for in-flight work to settle.
// Interrupted work surfaces as a job error through the normal failure path.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.baseCtx = nil
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Submit schedules work for the job and returns without waiting for it.
// The job must be queued; a duplicate submission while the first is still in
// flight returns ErrAlreadyRunning.
func (r *Runner) Submit(jobID string, work Work) error {
	if work == nil {
		return errors.New("work function is required")
	}

	r.mu.Lock()
	ctx := r.baseCtx
	if ctx == nil {
		r.mu.Unlock()
		return errors.New("runner is not started")
	}
	if _, exists := r.inflight[jobID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, jobID)
	}
	done := make(chan struct{})
	r.inflight[jobID] = done
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.inflight, jobID)
			r.mu.Unlock()
			close(done)
		}()

		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-ctx.Done():
			r.failJob(jobID, "shut down before execution started")
			return
		}

		r.execute(ctx, jobID, work)
	}()

	return nil
}

// AwaitTerminal blocks until the job reaches done or error, resolving through
// the in-flight completion channel when this runner owns the job. Records not
// owned by this runner fall back to store polling.
func (r *Runner) AwaitTerminal(ctx context.Context, jobID string) (*queue.Job, error) {
	r.mu.Lock()
	done, owned := r.inflight[jobID]
	r.mu.Unlock()

	if owned {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return r.terminalJob(ctx, jobID)
	}

	ticker := time.NewTicker(fallbackPollInterval)
	defer ticker.Stop()
	for {
		job, err := r.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("await job %s: record not found", jobID)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Runner) terminalJob(ctx context.Context, jobID string) (*queue.Job, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("await job %s: record not found", jobID)
	}
	return job, nil
}

func (r *Runner) execute(ctx context.Context, jobID string, work Work) {
	// Transitions persist on a detached context: shutdown cancellation must
	// not strand a record in running after the work function has returned.
	persistCtx := context.WithoutCancel(ctx)

	started := time.Now().UTC()
	job, err := r.store.UpdateJob(persistCtx, jobID, func(j *queue.Job) error {
		if j.Status != queue.StatusQueued {
			return fmt.Errorf("%w: job %s is %s", ErrNotQueued, jobID, j.Status)
		}
		j.Status = queue.StatusRunning
		j.StartedAt = &started
		j.Progress = "Starting"
		return nil
	})
	if err != nil {
		r.logger.Error("failed to transition job to running",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		return
	}

	result, workErr := r.invoke(ctx, job, work)

	finished := time.Now().UTC()
	if workErr != nil {
		_, err = r.store.UpdateJob(persistCtx, jobID, func(j *queue.Job) error {
			j.Status = queue.StatusError
			j.ErrorMessage = workErr.Error()
			j.FinishedAt = &finished
			return nil
		})
		if err != nil {
			r.logger.Error("failed to persist job failure",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err),
			)
		}
		r.logger.Warn("job failed",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldKind, string(job.Kind)),
			logging.Duration("elapsed", finished.Sub(started)),
			logging.Error(workErr),
		)
		return
	}

	_, err = r.store.UpdateJob(persistCtx, jobID, func(j *queue.Job) error {
		j.Status = queue.StatusDone
		j.ResultJSON = result
		j.Progress = "Complete"
		j.FinishedAt = &finished
		return nil
	})
	if err != nil {
		r.logger.Error("failed to persist job result",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		return
	}
	r.logger.Info("job completed",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldKind, string(job.Kind)),
		logging.Duration("elapsed", finished.Sub(started)),
	)
}

// invoke runs work with panic containment so a panicking work function can
// never leave the record stuck in running.
func (r *Runner) invoke(ctx context.Context, job *queue.Job, work Work) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("work panicked: %v", rec)
		}
	}()

	progress := func(message string) {
		_, progressErr := r.store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
			if j.Status != queue.StatusRunning {
				return nil
			}
			j.Progress = message
			return nil
		})
		if progressErr != nil {
			r.logger.Debug("progress update dropped",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(progressErr),
			)
		}
	}

	return work(ctx, job, progress)
}

func (r *Runner) failJob(jobID, reason string) {
	finished := time.Now().UTC()
	_, err := r.store.UpdateJob(context.Background(), jobID, func(j *queue.Job) error {
		if j.Status.Terminal() {
			return nil
		}
		j.Status = queue.StatusError
		j.ErrorMessage = reason
		j.FinishedAt = &finished
		return nil
	})
	if err != nil {
		r.logger.Error("failed to mark job as errored",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
	}
}
