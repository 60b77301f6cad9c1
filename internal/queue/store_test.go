package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"briefcast/internal/queue"
	"briefcast/internal/testsupport"
)

func TestNewJobAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, queue.KindEpisode, `{"topic":"ai"}`, "")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}

	fetched, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched == nil || fetched.InputJSON != `{"topic":"ai"}` {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestGetJobMissingReturnsNilNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job for unknown id, got %#v", job)
	}
}

func TestUpdateJobValidatesTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, queue.KindEpisode, "")

	started := time.Now().UTC()
	updated, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusRunning
		j.StartedAt = &started
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateJob to running failed: %v", err)
	}
	if updated.Status != queue.StatusRunning {
		t.Fatalf("expected running, got %s", updated.Status)
	}

	if _, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusQueued
		return nil
	}); err == nil {
		t.Fatal("expected running->queued transition to be rejected")
	}

	if _, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusDone
		return nil
	}); err != nil {
		t.Fatalf("UpdateJob to done failed: %v", err)
	}

	// Terminal records never transition again.
	if _, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusRunning
		return nil
	}); err == nil {
		t.Fatal("expected done->running transition to be rejected")
	}
}

func TestUpdateJobRejectedMutationRollsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, queue.KindEpisode, "")

	boom := errors.New("boom")
	if _, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Progress = "half applied"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	fetched, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched.Progress == "half applied" {
		t.Fatal("rejected mutation leaked into the store")
	}
}

func TestUpdateJobMissingReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.UpdateJob(context.Background(), "missing", func(j *queue.Job) error { return nil })
	if !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestClearQueueKeepsRunningAndDone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	queued := testsupport.NewJob(t, store, queue.KindEpisode, "")
	running := testsupport.NewJob(t, store, queue.KindEpisode, "")
	done := testsupport.NewJob(t, store, queue.KindEpisode, "")
	failed := testsupport.NewJob(t, store, queue.KindEpisode, "")

	advance := func(id string, statuses ...queue.Status) {
		for _, status := range statuses {
			status := status
			if _, err := store.UpdateJob(ctx, id, func(j *queue.Job) error {
				j.Status = status
				return nil
			}); err != nil {
				t.Fatalf("advance %s to %s: %v", id, status, err)
			}
		}
	}
	advance(running.ID, queue.StatusRunning)
	advance(done.ID, queue.StatusRunning, queue.StatusDone)
	advance(failed.ID, queue.StatusRunning, queue.StatusError)

	removed, err := store.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("ClearQueue failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed (queued + errored), got %d", removed)
	}

	for _, tc := range []struct {
		id   string
		want bool
	}{
		{queued.ID, false},
		{running.ID, true},
		{done.ID, true},
		{failed.ID, false},
	} {
		job, err := store.GetJob(ctx, tc.id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if (job != nil) != tc.want {
			t.Fatalf("job %s: exists=%v, want %v", tc.id, job != nil, tc.want)
		}
	}
}

func TestReconcileInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, queue.KindEpisode, "")
	if _, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusRunning
		return nil
	}); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	count, err := store.ReconcileInterrupted(ctx)
	if err != nil {
		t.Fatalf("ReconcileInterrupted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled job, got %d", count)
	}

	fetched, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched.Status != queue.StatusError {
		t.Fatalf("expected error status, got %s", fetched.Status)
	}
	if fetched.ErrorMessage != queue.InterruptedReason {
		t.Fatalf("unexpected error message: %q", fetched.ErrorMessage)
	}
	if fetched.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
}

func TestListJobsFiltersAndOrders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		job := testsupport.NewJob(t, store, queue.KindEpisode, fmt.Sprintf(`{"n":%d}`, i))
		ids = append(ids, job.ID)
	}

	jobs, err := store.ListJobs(ctx, queue.StatusQueued)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 queued jobs, got %d", len(jobs))
	}
	for i, job := range jobs {
		if job.ID != ids[i] {
			t.Fatalf("jobs out of creation order at %d", i)
		}
	}

	jobs, err = store.ListJobs(ctx, queue.StatusDone)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no done jobs, got %d", len(jobs))
	}
}

func TestSeriesAppendBoundedByPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	plan := []queue.PlanStep{
		{Title: "Overview", Tension: "t1"},
		{Title: "Mechanisms", Tension: "t2"},
	}
	series, err := store.NewSeries(ctx, "AI Moats", plan)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}

	for i := 0; i < len(plan); i++ {
		job := testsupport.NewJob(t, store, queue.KindSeriesEpisode, "")
		if err := store.AppendSeriesJob(ctx, series.ID, job.ID); err != nil {
			t.Fatalf("AppendSeriesJob %d failed: %v", i, err)
		}
	}

	extra := testsupport.NewJob(t, store, queue.KindSeriesEpisode, "")
	if err := store.AppendSeriesJob(ctx, series.ID, extra.ID); err == nil {
		t.Fatal("expected append beyond plan length to fail")
	}

	fetched, err := store.GetSeries(ctx, series.ID)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(fetched.JobIDs) != len(plan) {
		t.Fatalf("expected %d job ids, got %d", len(plan), len(fetched.JobIDs))
	}
}

func TestSeriesErrorPersists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	series, err := store.NewSeries(ctx, "Doomed", []queue.PlanStep{{Title: "Only"}})
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	if err := store.SetSeriesError(ctx, series.ID, "step 1: synthesis failed"); err != nil {
		t.Fatalf("SetSeriesError failed: %v", err)
	}

	fetched, err := store.GetSeries(ctx, series.ID)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if fetched.ErrorMessage != "step 1: synthesis failed" {
		t.Fatalf("unexpected series error: %q", fetched.ErrorMessage)
	}
}

func TestEpisodesNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		ep := &queue.Episode{
			ID:        fmt.Sprintf("ep-%d", i),
			Title:     fmt.Sprintf("Episode %d", i),
			File:      fmt.Sprintf("/tmp/ep-%d.mp3", i),
			FileSize:  100,
			Published: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveEpisode(ctx, ep); err != nil {
			t.Fatalf("SaveEpisode failed: %v", err)
		}
	}

	episodes, err := store.ListEpisodes(ctx)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(episodes))
	}
	if episodes[0].ID != "ep-2" || episodes[2].ID != "ep-0" {
		t.Fatalf("episodes not newest first: %s, %s, %s", episodes[0].ID, episodes[1].ID, episodes[2].ID)
	}

	removed, err := store.RemoveEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("RemoveEpisode failed: %v", err)
	}
	if !removed {
		t.Fatal("expected episode to be removed")
	}
	episodes, err = store.ListEpisodes(ctx)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes after removal, got %d", len(episodes))
	}
}

func TestTryReserveProductionEnforcesCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	window := 7 * 24 * time.Hour
	for i := 0; i < 2; i++ {
		ok, err := store.TryReserveProduction(ctx, 2, window, fmt.Sprintf("job-%d", i))
		if err != nil {
			t.Fatalf("TryReserveProduction %d failed: %v", i, err)
		}
		if !ok {
			t.Fatalf("reservation %d unexpectedly denied", i)
		}
	}

	ok, err := store.TryReserveProduction(ctx, 2, window, "job-over")
	if err != nil {
		t.Fatalf("TryReserveProduction failed: %v", err)
	}
	if ok {
		t.Fatal("expected reservation beyond cap to be denied")
	}

	count, err := store.CountProductionsSince(ctx, time.Now().Add(-window))
	if err != nil {
		t.Fatalf("CountProductionsSince failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("denied reservation must not write a row: count=%d", count)
	}
}

func TestTryReserveProductionZeroCapUnlimited(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ok, err := store.TryReserveProduction(ctx, 0, 7*24*time.Hour, "")
		if err != nil {
			t.Fatalf("TryReserveProduction failed: %v", err)
		}
		if !ok {
			t.Fatal("zero cap must reserve unconditionally")
		}
	}
}
