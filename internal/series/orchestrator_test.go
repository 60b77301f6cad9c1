package series_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"briefcast/internal/guard"
	"briefcast/internal/logging"
	"briefcast/internal/queue"
	"briefcast/internal/runner"
	"briefcast/internal/scheduler"
	"briefcast/internal/series"
	"briefcast/internal/services/scriptgen"
	"briefcast/internal/testsupport"
)

type fakeOutlines struct {
	outline *scriptgen.SeriesOutline
	err     error
}

func (f *fakeOutlines) OutlineSeries(ctx context.Context, prompt string, episodes int) (*scriptgen.SeriesOutline, error) {
	return f.outline, f.err
}

type harness struct {
	store        *queue.Store
	orchestrator *series.Orchestrator
}

// newHarness builds a real store/runner/scheduler stack with step work that
// fails when the step topic contains "FAIL".
func newHarness(t *testing.T, cap int, outlines *fakeOutlines) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWeeklyCap(cap))
	store := testsupport.MustOpenStore(t, cfg)

	r := runner.New(store, logging.NewNop(), 2)
	r.Start(context.Background())
	t.Cleanup(r.Stop)

	sched := scheduler.New(store, guard.New(cfg, store), r, logging.NewNop())
	sched.Register(queue.KindSeriesEpisode, func(ctx context.Context, j *queue.Job, progress runner.ProgressFunc) (string, error) {
		var input struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal([]byte(j.InputJSON), &input); err != nil {
			return "", err
		}
		if strings.Contains(input.Topic, "FAIL") {
			return "", errors.New("scripted failure")
		}
		return `{"ok":true}`, nil
	})

	if outlines == nil {
		outlines = &fakeOutlines{}
	}
	orchestrator := series.New(store, sched, outlines, logging.NewNop())
	orchestrator.Start(context.Background())
	t.Cleanup(orchestrator.Stop)

	return &harness{store: store, orchestrator: orchestrator}
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) seriesState(t *testing.T, id string) (*queue.Series, queue.SeriesStatus) {
	t.Helper()
	ctx := context.Background()
	fetched, err := h.store.GetSeries(ctx, id)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	jobs := make([]*queue.Job, len(fetched.JobIDs))
	for i, jobID := range fetched.JobIDs {
		job, err := h.store.GetJob(ctx, jobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		jobs[i] = job
	}
	return fetched, queue.DeriveSeriesStatus(fetched, jobs)
}

func TestSeriesRunsAllStepsInOrder(t *testing.T) {
	h := newHarness(t, 0, nil)
	plan := []queue.PlanStep{
		{Title: "Overview", Tension: "t1"},
		{Title: "Mechanisms", Tension: "t2"},
		{Title: "Implications", Tension: "t3"},
	}
	created, err := h.orchestrator.Create(context.Background(), "Arc", plan)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	waitFor(t, "series completion", func() bool {
		_, status := h.seriesState(t, created.ID)
		return status == queue.SeriesDone
	})

	fetched, _ := h.seriesState(t, created.ID)
	if len(fetched.JobIDs) != len(plan) {
		t.Fatalf("expected %d jobs, got %d", len(plan), len(fetched.JobIDs))
	}

	// Each step must have been created only after the previous finished.
	var prevFinished *time.Time
	for i, jobID := range fetched.JobIDs {
		job, err := h.store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.Status != queue.StatusDone {
			t.Fatalf("step %d not done: %s", i+1, job.Status)
		}
		if prevFinished != nil && job.CreatedAt.Before(*prevFinished) {
			t.Fatalf("step %d created before step %d finished", i+1, i)
		}
		prevFinished = job.FinishedAt
	}
}

func TestSeriesStopsOnFirstError(t *testing.T) {
	h := newHarness(t, 0, nil)
	plan := []queue.PlanStep{
		{Title: "Fine"},
		{Title: "FAIL here"},
		{Title: "Never produced"},
	}
	created, err := h.orchestrator.Create(context.Background(), "Doomed Arc", plan)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	waitFor(t, "series failure", func() bool {
		fetched, _ := h.seriesState(t, created.ID)
		return fetched.ErrorMessage != ""
	})

	fetched, status := h.seriesState(t, created.ID)
	if status != queue.SeriesFailed {
		t.Fatalf("expected failed series, got %s", status)
	}
	if len(fetched.JobIDs) != 2 {
		t.Fatalf("expected walk to stop after step 2, got %d jobs", len(fetched.JobIDs))
	}
	if !strings.Contains(fetched.ErrorMessage, "FAIL here") {
		t.Fatalf("series error should name the failing step: %q", fetched.ErrorMessage)
	}
}

func TestSeriesStopsWhenCapDenies(t *testing.T) {
	h := newHarness(t, 1, nil)
	plan := []queue.PlanStep{
		{Title: "First"},
		{Title: "Second"},
	}
	created, err := h.orchestrator.Create(context.Background(), "Capped Arc", plan)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	waitFor(t, "cap denial", func() bool {
		fetched, _ := h.seriesState(t, created.ID)
		return fetched.ErrorMessage != ""
	})

	fetched, status := h.seriesState(t, created.ID)
	if status != queue.SeriesFailed {
		t.Fatalf("expected failed series, got %s", status)
	}
	if len(fetched.JobIDs) != 1 {
		t.Fatalf("expected only the admitted step recorded, got %d", len(fetched.JobIDs))
	}
}

func TestCreateFromPromptUsesOutline(t *testing.T) {
	outlines := &fakeOutlines{outline: &scriptgen.SeriesOutline{
		Title: "Generated Arc",
		Episodes: []queue.PlanStep{
			{Title: "One"},
			{Title: "Two"},
		},
	}}
	h := newHarness(t, 0, outlines)

	created, err := h.orchestrator.CreateFromPrompt(context.Background(), "ai moats", 2)
	if err != nil {
		t.Fatalf("CreateFromPrompt failed: %v", err)
	}
	if created.Title != "Generated Arc" {
		t.Fatalf("unexpected title: %q", created.Title)
	}

	waitFor(t, "series completion", func() bool {
		_, status := h.seriesState(t, created.ID)
		return status == queue.SeriesDone
	})
}

func TestCreateFromPromptOutlineFailureLeavesNoRecord(t *testing.T) {
	outlines := &fakeOutlines{err: errors.New("model unavailable")}
	h := newHarness(t, 0, outlines)

	if _, err := h.orchestrator.CreateFromPrompt(context.Background(), "ai moats", 2); err == nil {
		t.Fatal("expected outline failure to surface")
	}

	all, err := h.store.ListSeries(context.Background())
	if err != nil {
		t.Fatalf("ListSeries failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("outline failure must not create a series, found %d", len(all))
	}
}
