package status

import (
	"context"
	"encoding/json"
	"time"

	"briefcast/internal/guard"
	"briefcast/internal/queue"
	"briefcast/internal/services"
)

// Reporter serves read-only views of queue and series state. It never
// mutates records, so repeated reads without an intervening write return
// identical payloads.
type Reporter struct {
	store *queue.Store
	guard *guard.Guard
}

// New constructs a reporter.
func New(store *queue.Store, g *guard.Guard) *Reporter {
	return &Reporter{store: store, guard: g}
}

// JobView is the external representation of a job record.
type JobView struct {
	ID         string          `json:"id"`
	Kind       queue.Kind      `json:"kind"`
	Status     queue.Status    `json:"status"`
	Progress   string          `json:"progress,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	SeriesID   string          `json:"series_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// SeriesChildView is one plan step joined with its job, when one exists.
// Stale marks a recorded job id that no longer resolves in the store.
type SeriesChildView struct {
	Step     int          `json:"step"`
	Title    string       `json:"title"`
	JobID    string       `json:"job_id,omitempty"`
	Status   queue.Status `json:"status,omitempty"`
	Progress string       `json:"progress,omitempty"`
	Error    string       `json:"error,omitempty"`
	Stale    bool         `json:"stale,omitempty"`
}

// SeriesView is the external representation of a series and its children.
type SeriesView struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Status    queue.SeriesStatus `json:"status"`
	Error     string             `json:"error,omitempty"`
	Episodes  []SeriesChildView  `json:"episodes"`
	CreatedAt time.Time          `json:"created_at"`
}

// GetJob returns the view of one job or services.ErrNotFound.
func (r *Reporter) GetJob(ctx context.Context, id string) (*JobView, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "status", "job", id, nil)
	}
	view := jobView(job)
	return &view, nil
}

// ListActiveJobs returns queued and running jobs in creation order.
func (r *Reporter) ListActiveJobs(ctx context.Context) ([]JobView, error) {
	jobs, err := r.store.ActiveJobs(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job))
	}
	return views, nil
}

// ListJobs returns every job in creation order.
func (r *Reporter) ListJobs(ctx context.Context) ([]JobView, error) {
	jobs, err := r.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job))
	}
	return views, nil
}

// GetSeries returns the series joined with child job state. A recorded job
// id missing from the store becomes a stale placeholder rather than an error.
func (r *Reporter) GetSeries(ctx context.Context, id string) (*SeriesView, error) {
	series, err := r.store.GetSeries(ctx, id)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, services.Wrap(services.ErrNotFound, "status", "series", id, nil)
	}

	jobs := make([]*queue.Job, len(series.JobIDs))
	for i, jobID := range series.JobIDs {
		job, err := r.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		jobs[i] = job
	}

	view := &SeriesView{
		ID:        series.ID,
		Title:     series.Title,
		Status:    queue.DeriveSeriesStatus(series, jobs),
		Error:     series.ErrorMessage,
		CreatedAt: series.CreatedAt,
	}
	for i, step := range series.Plan {
		child := SeriesChildView{Step: i + 1, Title: step.Title}
		if i < len(series.JobIDs) {
			child.JobID = series.JobIDs[i]
			if jobs[i] != nil {
				child.Status = jobs[i].Status
				child.Progress = jobs[i].Progress
				child.Error = jobs[i].ErrorMessage
			} else {
				child.Stale = true
			}
		}
		view.Episodes = append(view.Episodes, child)
	}
	return view, nil
}

// ListSeries returns the view of every series, newest last.
func (r *Reporter) ListSeries(ctx context.Context) ([]SeriesView, error) {
	all, err := r.store.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SeriesView, 0, len(all))
	for _, series := range all {
		view, err := r.GetSeries(ctx, series.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// CapUsage reports productions inside the rolling window against the cap.
type CapUsage struct {
	Used   int `json:"used"`
	Cap    int `json:"cap"`
	Window int `json:"window_days"`
}

// Usage returns current production cap consumption.
func (r *Reporter) Usage(ctx context.Context) (CapUsage, error) {
	used, capValue, err := r.guard.Usage(ctx)
	if err != nil {
		return CapUsage{}, err
	}
	return CapUsage{Used: used, Cap: capValue, Window: int(guard.Window.Hours() / 24)}, nil
}

// Health aggregates job counts for the health endpoint.
func (r *Reporter) Health(ctx context.Context) (queue.HealthSummary, error) {
	return r.store.Health(ctx)
}

func jobView(job *queue.Job) JobView {
	view := JobView{
		ID:         job.ID,
		Kind:       job.Kind,
		Status:     job.Status,
		Progress:   job.Progress,
		Error:      job.ErrorMessage,
		SeriesID:   job.SeriesID,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ResultJSON != "" {
		view.Result = json.RawMessage(job.ResultJSON)
	}
	return view
}
