package status_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"briefcast/internal/guard"
	"briefcast/internal/queue"
	"briefcast/internal/services"
	"briefcast/internal/status"
	"briefcast/internal/testsupport"
)

func newReporter(t *testing.T) (*status.Reporter, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWeeklyCap(10))
	store := testsupport.MustOpenStore(t, cfg)
	return status.New(store, guard.New(cfg, store)), store
}

func TestGetJobNotFound(t *testing.T) {
	reporter, _ := newReporter(t)

	_, err := reporter.GetJob(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveJobsExcludesTerminal(t *testing.T) {
	reporter, store := newReporter(t)
	ctx := context.Background()

	active := testsupport.NewJob(t, store, queue.KindEpisode, "")
	finished := testsupport.NewJob(t, store, queue.KindEpisode, "")
	for _, next := range []queue.Status{queue.StatusRunning, queue.StatusDone} {
		next := next
		if _, err := store.UpdateJob(ctx, finished.ID, func(j *queue.Job) error {
			j.Status = next
			return nil
		}); err != nil {
			t.Fatalf("UpdateJob failed: %v", err)
		}
	}

	views, err := reporter.ListActiveJobs(ctx)
	if err != nil {
		t.Fatalf("ListActiveJobs failed: %v", err)
	}
	if len(views) != 1 || views[0].ID != active.ID {
		t.Fatalf("unexpected active jobs: %#v", views)
	}
}

func TestGetSeriesJoinsChildren(t *testing.T) {
	reporter, store := newReporter(t)
	ctx := context.Background()

	plan := []queue.PlanStep{{Title: "One"}, {Title: "Two"}}
	created, err := store.NewSeries(ctx, "Arc", plan)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	job, err := store.NewJob(ctx, queue.KindSeriesEpisode, "", created.ID)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := store.AppendSeriesJob(ctx, created.ID, job.ID); err != nil {
		t.Fatalf("AppendSeriesJob failed: %v", err)
	}

	view, err := reporter.GetSeries(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if view.Status != queue.SeriesInProgress {
		t.Fatalf("expected in_progress, got %s", view.Status)
	}
	if len(view.Episodes) != 2 {
		t.Fatalf("expected a row per plan step, got %d", len(view.Episodes))
	}
	if view.Episodes[0].JobID != job.ID || view.Episodes[0].Status != queue.StatusQueued {
		t.Fatalf("unexpected first child: %#v", view.Episodes[0])
	}
	if view.Episodes[1].JobID != "" {
		t.Fatalf("second step should have no job yet: %#v", view.Episodes[1])
	}
}

func TestGetSeriesClearedChildIsStalePlaceholder(t *testing.T) {
	reporter, store := newReporter(t)
	ctx := context.Background()

	created, err := store.NewSeries(ctx, "Arc", []queue.PlanStep{{Title: "One"}})
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}
	job, err := store.NewJob(ctx, queue.KindSeriesEpisode, "", created.ID)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := store.AppendSeriesJob(ctx, created.ID, job.ID); err != nil {
		t.Fatalf("AppendSeriesJob failed: %v", err)
	}

	// Administratively clear the queued child; the id in the series now
	// points at nothing.
	if _, err := store.ClearQueue(ctx); err != nil {
		t.Fatalf("ClearQueue failed: %v", err)
	}

	view, err := reporter.GetSeries(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSeries must tolerate cleared children: %v", err)
	}
	if !view.Episodes[0].Stale {
		t.Fatalf("expected stale placeholder, got %#v", view.Episodes[0])
	}
	if view.Status != queue.SeriesFailed {
		t.Fatalf("cleared child should derive failed, got %s", view.Status)
	}
}

func TestGetJobRepeatedReadsAreIdentical(t *testing.T) {
	reporter, store := newReporter(t)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, queue.KindEpisode, `{"topic":"x"}`)
	if _, err := store.UpdateJob(ctx, job.ID, func(j *queue.Job) error {
		j.Status = queue.StatusRunning
		j.Progress = "Writing script"
		return nil
	}); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	first, err := reporter.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("first GetJob failed: %v", err)
	}
	second, err := reporter.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("second GetJob failed: %v", err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first view: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second view: %v", err)
	}
	if !bytes.Equal(firstJSON, secondJSON) {
		t.Fatalf("reads without intervening mutation differ:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestUsageReportsWindowConsumption(t *testing.T) {
	reporter, store := newReporter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.TryReserveProduction(ctx, 10, guard.Window, ""); err != nil {
			t.Fatalf("TryReserveProduction failed: %v", err)
		}
	}

	usage, err := reporter.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if usage.Used != 3 || usage.Cap != 10 || usage.Window != 7 {
		t.Fatalf("unexpected usage: %#v", usage)
	}
}
