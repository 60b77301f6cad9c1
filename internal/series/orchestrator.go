package series

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"briefcast/internal/logging"
	"briefcast/internal/queue"
	"briefcast/internal/services"
	"briefcast/internal/services/scriptgen"
)

// Enqueuer admits series steps into the job queue.
type Enqueuer interface {
	EnqueueForSeries(ctx context.Context, kind queue.Kind, inputJSON, seriesID string) (*queue.Job, error)
	Await(ctx context.Context, jobID string) (*queue.Job, error)
}

// OutlineService generates an episode plan from a free prompt.
type OutlineService interface {
	OutlineSeries(ctx context.Context, prompt string, episodes int) (*scriptgen.SeriesOutline, error)
}

// Orchestrator drives multi-episode series production. Each series runs in
// one background goroutine that walks the plan strictly in order: a step is
// only enqueued after the previous one finished done, and the first error
// stops the walk for good.
type Orchestrator struct {
	store    *queue.Store
	enqueuer Enqueuer
	outlines OutlineService
	logger   *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an orchestrator.
func New(store *queue.Store, enqueuer Enqueuer, outlines OutlineService, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		enqueuer: enqueuer,
		outlines: outlines,
		logger:   logging.NewComponentLogger(logger, "series"),
	}
}

// Start prepares the background execution context.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.baseCtx != nil {
		return
	}
	o.baseCtx, o.cancel = context.WithCancel(ctx)
}

// Stop cancels background production and waits for series goroutines to
// settle. In-flight jobs finish through the runner's own shutdown path.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.baseCtx = nil
	o.cancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}

// Create persists a series with a fixed plan and launches its production
// walk. The returned record reflects the state before any step has run.
func (o *Orchestrator) Create(ctx context.Context, title string, plan []queue.PlanStep) (*queue.Series, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("series title is required")
	}
	if len(plan) == 0 {
		return nil, errors.New("series plan is empty")
	}

	o.mu.Lock()
	runCtx := o.baseCtx
	o.mu.Unlock()
	if runCtx == nil {
		return nil, errors.New("orchestrator is not started")
	}

	series, err := o.store.NewSeries(ctx, title, plan)
	if err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, series)
	}()

	o.logger.Info("series created",
		logging.String(logging.FieldSeriesID, series.ID),
		logging.String("title", series.Title),
		logging.Int("episodes", len(plan)),
	)
	return series, nil
}

// CreateFromPrompt asks the outline service for an episode arc, then creates
// the series from it. An outline failure surfaces synchronously and leaves no
// record behind.
func (o *Orchestrator) CreateFromPrompt(ctx context.Context, prompt string, episodes int) (*queue.Series, error) {
	outline, err := o.outlines.OutlineSeries(ctx, prompt, episodes)
	if err != nil {
		return nil, err
	}
	return o.Create(ctx, outline.Title, outline.Episodes)
}

func (o *Orchestrator) run(ctx context.Context, series *queue.Series) {
	for i, step := range series.Plan {
		if ctx.Err() != nil {
			return
		}

		input, err := stepInput(series, i)
		if err != nil {
			o.fail(series.ID, fmt.Sprintf("step %d: %v", i+1, err))
			return
		}

		job, err := o.enqueuer.EnqueueForSeries(ctx, queue.KindSeriesEpisode, input, series.ID)
		if err != nil {
			if errors.Is(err, services.ErrCapExceeded) {
				o.fail(series.ID, fmt.Sprintf("step %d (%s): %v", i+1, step.Title, err))
				return
			}
			o.fail(series.ID, fmt.Sprintf("step %d (%s): enqueue: %v", i+1, step.Title, err))
			return
		}

		if err := o.store.AppendSeriesJob(ctx, series.ID, job.ID); err != nil {
			o.fail(series.ID, fmt.Sprintf("step %d: record job: %v", i+1, err))
			return
		}

		finished, err := o.enqueuer.Await(ctx, job.ID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.fail(series.ID, fmt.Sprintf("step %d (%s): await: %v", i+1, step.Title, err))
			return
		}
		if finished.Status != queue.StatusDone {
			o.fail(series.ID, fmt.Sprintf("step %d (%s): %s", i+1, step.Title, finished.ErrorMessage))
			return
		}

		o.logger.Info("series step completed",
			logging.String(logging.FieldSeriesID, series.ID),
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("step", i+1),
			logging.Int("of", len(series.Plan)),
		)
	}

	o.logger.Info("series completed", logging.String(logging.FieldSeriesID, series.ID))
}

func (o *Orchestrator) fail(seriesID, message string) {
	if err := o.store.SetSeriesError(context.Background(), seriesID, message); err != nil {
		o.logger.Error("failed to record series error",
			logging.String(logging.FieldSeriesID, seriesID),
			logging.Error(err),
		)
	}
	o.logger.Warn("series stopped",
		logging.String(logging.FieldSeriesID, seriesID),
		logging.String("reason", message),
	)
}

// stepInput builds the job payload for plan step i, folding the series arc so
// far into the production context.
func stepInput(series *queue.Series, i int) (string, error) {
	step := series.Plan[i]
	topic := step.Title
	if step.Tension != "" {
		topic = topic + "\n\nCentral tension: " + step.Tension
	}

	payload := map[string]any{
		"topic":     topic,
		"brief":     step.Brief,
		"context":   seriesContext(series, i),
		"series_ep": i + 1,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode step input: %w", err)
	}
	return string(encoded), nil
}

func seriesContext(series *queue.Series, i int) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Series: %s (episode %d of %d).\n", series.Title, i+1, len(series.Plan))
	for j := 0; j < i; j++ {
		fmt.Fprintf(&builder, "Episode %d covered: %s", j+1, series.Plan[j].Title)
		if series.Plan[j].Tension != "" {
			builder.WriteString(" — ")
			builder.WriteString(series.Plan[j].Tension)
		}
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String())
}
