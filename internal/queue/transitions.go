package queue

import "fmt"

// InvalidTransitionError describes a rejected status change.
type InvalidTransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("job %s: invalid status transition %s -> %s", e.JobID, e.From, e.To)
}

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusRunning: {},
		StatusError:   {},
	},
	StatusRunning: {
		StatusDone:  {},
		StatusError: {},
	},
}

// CanTransition reports whether a status change is permitted by the job state
// machine. Transitions are monotonic: queued -> running -> done|error, with
// no terminal escape and no state revisited. queued -> error covers jobs
// rejected before execution ever started.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

func validateTransition(job *Job, from Status) error {
	if !job.Status.Valid() {
		return fmt.Errorf("job %s: unknown status %q", job.ID, job.Status)
	}
	if !CanTransition(from, job.Status) {
		return &InvalidTransitionError{JobID: job.ID, From: from, To: job.Status}
	}
	return nil
}
