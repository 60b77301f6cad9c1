package queue

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle of a job record.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// InterruptedReason is the error message assigned to jobs found running
// during the startup reconciliation pass.
const InterruptedReason = "interrupted by restart"

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusDone,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is a known lifecycle value.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Active reports whether the job still occupies the queue.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning
}

// Kind distinguishes job types and selects the work function to run.
type Kind string

const (
	// KindEpisode produces one episode from a caller-supplied topic.
	KindEpisode Kind = "episode"
	// KindChat derives a topic from a free-text message, then produces an episode.
	KindChat Kind = "chat"
	// KindAutoqueue sources its own topic before producing an episode.
	KindAutoqueue Kind = "autoqueue"
	// KindSeriesEpisode produces one step of a series plan.
	KindSeriesEpisode Kind = "series_episode"
)

// Job is the unit of schedulable work. Input and Result are opaque JSON
// payloads owned by the job's kind; the queue never inspects them.
type Job struct {
	ID           string
	Kind         Kind
	InputJSON    string
	Status       Status
	Progress     string
	ResultJSON   string
	ErrorMessage string
	SeriesID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// PlanStep describes one episode of a series plan, fixed at creation time.
type PlanStep struct {
	Title   string `json:"title"`
	Tension string `json:"tension"`
	Brief   string `json:"brief,omitempty"`
}

// Series is an ordered multi-step production plan. JobIDs grows one entry per
// produced step and never exceeds the plan length; JobIDs[i] corresponds to
// Plan[i].
type Series struct {
	ID           string
	Title        string
	Plan         []PlanStep
	JobIDs       []string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SeriesStatus is derived from child job state and never stored.
type SeriesStatus string

const (
	SeriesNotStarted SeriesStatus = "not_started"
	SeriesInProgress SeriesStatus = "in_progress"
	SeriesDone       SeriesStatus = "done"
	SeriesFailed     SeriesStatus = "failed"
)

// DeriveSeriesStatus computes the series status from its children. jobs must
// be the child jobs in JobIDs order; a nil entry stands for a job id that no
// longer resolves (administrative clearing) and counts as failed.
func DeriveSeriesStatus(series *Series, jobs []*Job) SeriesStatus {
	if series == nil {
		return SeriesNotStarted
	}
	if series.ErrorMessage != "" {
		return SeriesFailed
	}
	if len(series.JobIDs) == 0 {
		return SeriesNotStarted
	}
	for _, job := range jobs {
		if job == nil || job.Status == StatusError {
			return SeriesFailed
		}
	}
	if len(series.JobIDs) < len(series.Plan) {
		return SeriesInProgress
	}
	for _, job := range jobs {
		if job.Status != StatusDone {
			return SeriesInProgress
		}
	}
	return SeriesDone
}

// Episode is a finished production artifact published to the feed.
type Episode struct {
	ID          string
	Title       string
	Description string
	File        string
	FileSize    int64
	Depth       string
	IsTrailer   bool
	Sources     []string
	SeriesID    string
	SeriesEp    int
	Published   time.Time
}

// HealthSummary aggregates job counts for diagnostics.
type HealthSummary struct {
	Total   int
	Queued  int
	Running int
	Done    int
	Errored int
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
