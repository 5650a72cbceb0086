package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"iconforge/internal/providers/image"
	"iconforge/internal/storage"
)

const (
	maxAttempts       = 3
	defaultRetryDelay = 5 * time.Second
	eventBufferSize   = 256
)

// RunConfig is the immutable snapshot of settings one run executes against.
// Edits to the settings document after Start do not affect a running worker.
type RunConfig struct {
	Combinations    []string
	Order           []Component
	GlobalPrompt    string
	NegativePrompt  string
	Sections        []Section
	Layers          []Layer
	ModelID         string
	AspectRatio     string
	Iterations      int
	Plan            PlanOptions
	RetryDelay      time.Duration
	RequestInterval time.Duration
}

// ProgressSink receives the progress map after every combination so the
// controller can persist it incrementally.
type ProgressSink interface {
	PersistProgress(snapshot map[string]Entry) error
}

// Worker executes one bulk generation run: it walks the combinations
// sequentially, composes prompts, calls the image backend with bounded
// retries and streams events to its channel. A Worker is single-use; build a
// new one per run.
type Worker struct {
	cfg      RunConfig
	backends *image.Registry
	store    *storage.Store
	progress *Progress
	sink     ProgressSink
	logger   zerolog.Logger
	limiter  *rate.Limiter

	retryDelay time.Duration
	events     chan Event

	mu          sync.Mutex
	cond        *sync.Cond
	started     bool
	running     bool
	paused      bool
	stopped     bool
	cancel      context.CancelFunc
	lastPercent int
}

// NewWorker wires a worker for one run. sink may be nil when incremental
// persistence is not wanted.
func NewWorker(cfg RunConfig, backends *image.Registry, store *storage.Store, progress *Progress, sink ProgressSink, logger zerolog.Logger) *Worker {
	w := &Worker{
		cfg:        cfg,
		backends:   backends,
		store:      store,
		progress:   progress,
		sink:       sink,
		logger:     logger,
		retryDelay: cfg.RetryDelay,
		events:     make(chan Event, eventBufferSize),
	}
	if w.retryDelay <= 0 {
		w.retryDelay = defaultRetryDelay
	}
	if cfg.RequestInterval > 0 {
		w.limiter = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Events returns the worker's outbound stream. The channel closes when the
// run ends.
func (w *Worker) Events() <-chan Event { return w.events }

// Running reports whether the run goroutine is still executing.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start launches the run goroutine. A worker starts at most once.
func (w *Worker) Start(ctx context.Context) error {
	if len(w.cfg.Combinations) == 0 {
		return ErrNoCombinations
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrRunActive
	}
	w.started = true
	w.running = true
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	go w.run(runCtx)
	return nil
}

// Pause suspends the run at the next loop boundary. In-flight attempts finish
// first.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running && !w.stopped {
		w.paused = true
	}
}

// Resume wakes a paused run, including one paused by exhausted retries.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = false
	w.cond.Broadcast()
}

// Stop terminates the run. It overrides a pause, cancels the run context so
// an in-flight request or backoff wait unblocks, and wins over a concurrent
// Resume.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.paused = false
	if w.cancel != nil {
		w.cancel()
	}
	w.cond.Broadcast()
}

func (w *Worker) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// waitWhilePaused blocks while the run is paused and reports whether it
// should keep going; false means the run was stopped.
func (w *Worker) waitWhilePaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.paused && !w.stopped {
		w.cond.Wait()
	}
	return !w.stopped
}

// beginErrorPause marks the run paused after a combination exhausted its
// attempts. It runs before the pause event is emitted, so a Resume issued in
// reaction to the event is never lost.
func (w *Worker) beginErrorPause() {
	w.mu.Lock()
	if !w.stopped {
		w.paused = true
	}
	w.mu.Unlock()
}

func (w *Worker) run(ctx context.Context) {
	total := len(w.cfg.Combinations) * w.cfg.Iterations
	processed := 0

	defer w.finish()

loop:
	for _, line := range w.cfg.Combinations {
		if !w.waitWhilePaused() {
			break
		}

		entry := w.progress.Get(line)
		if entry.Status == StatusCompleted {
			processed += w.cfg.Iterations
			w.emit(Event{
				Kind:        EventProgress,
				Percent:     w.percent(processed, total),
				Combination: line,
				Message:     fmt.Sprintf("Skipping completed: %s", line),
			})
			continue
		}

		processed += entry.IterationsCompleted
		entry.Status = StatusInProgress
		entry.LastError = ""
		w.progress.Set(line, entry)

		for iter := entry.IterationsCompleted + 1; iter <= w.cfg.Iterations; iter++ {
			if !w.waitWhilePaused() {
				break loop
			}

			prompt := Compose(line, w.cfg.Order, w.cfg.GlobalPrompt, w.cfg.Sections, w.cfg.Layers)
			if prompt == "" {
				aerr := &AttemptError{Kind: FailurePromptBuild, Err: fmt.Errorf("no prompt text for %q", line)}
				entry.Status = StatusError
				entry.LastError = aerr.Error()
				w.logger.Warn().Str("combination", line).Msg("empty prompt, skipping combination")
				w.emit(Event{
					Kind:        EventAttemptError,
					Combination: line,
					Iteration:   iter,
					Attempt:     0,
					Message:     aerr.Error(),
				})
				break
			}

			if err := w.generateIteration(ctx, line, iter, prompt, &entry); err != nil {
				if w.isStopped() {
					break loop
				}
				entry.Status = StatusError
				entry.LastError = err.Error()
				w.progress.Set(line, entry)
				w.persist()
				w.logger.Error().Err(err).Str("combination", line).Int("iteration", iter).
					Msg("combination failed after retries, pausing")
				w.beginErrorPause()
				w.emit(Event{
					Kind:        EventPausedOnError,
					Combination: line,
					Iteration:   iter,
					Message:     entry.LastError,
				})
				w.waitWhilePaused()
				break
			}

			entry.IterationsCompleted = iter
			processed++
			w.progress.Set(line, entry)
			w.emit(Event{
				Kind:        EventProgress,
				Percent:     w.percent(processed, total),
				Combination: line,
				Iteration:   iter,
				Message:     fmt.Sprintf("Generated %s (%d/%d)", line, iter, w.cfg.Iterations),
			})
		}

		if entry.Status == StatusInProgress && entry.IterationsCompleted >= w.cfg.Iterations {
			entry.Status = StatusCompleted
		}
		w.progress.Set(line, entry)
		w.persist()
	}
}

// generateIteration runs one iteration with up to maxAttempts attempts spaced
// by the constant retry delay. Every failed attempt is reported on the event
// stream.
func (w *Worker) generateIteration(ctx context.Context, line string, iter int, prompt string, entry *Entry) error {
	attempt := 0
	op := func() error {
		attempt++
		err := w.attemptOnce(ctx, line, iter, prompt, entry)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Str("combination", line).Int("iteration", iter).Int("attempt", attempt).
			Msg("generation attempt failed")
		w.emit(Event{
			Kind:        EventAttemptError,
			Combination: line,
			Iteration:   iter,
			Attempt:     attempt,
			Message:     err.Error(),
		})
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(w.retryDelay), maxAttempts-1),
		ctx,
	)
	return backoff.Retry(op, policy)
}

// attemptOnce performs a single generate-and-save attempt and classifies any
// failure.
func (w *Worker) attemptOnce(ctx context.Context, line string, iter int, prompt string, entry *Entry) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return &AttemptError{Kind: FailureBackendCall, Err: err}
		}
	}

	gen, err := w.backends.Resolve(w.cfg.ModelID)
	if err != nil {
		return &AttemptError{Kind: FailureBackendCall, Err: err}
	}

	res, err := gen.Generate(ctx, image.Request{
		Prompt:         prompt,
		NegativePrompt: w.cfg.NegativePrompt,
		AspectRatio:    w.cfg.AspectRatio,
		ModelID:        w.cfg.ModelID,
	})
	if err != nil {
		return &AttemptError{Kind: FailureBackendCall, Err: err}
	}
	if res == nil || len(res.Data) == 0 {
		return &AttemptError{Kind: FailureEmptyResult, Err: errors.New("backend returned no image data")}
	}

	dir, name := PlanFile(line, iter, w.planFor(line))
	key := name
	if dir != "" {
		key = dir + "/" + name
	}
	path, err := w.store.Write(ctx, key, res.Data)
	if err != nil {
		return &AttemptError{Kind: FailureSave, Err: err}
	}

	entry.GeneratedFiles = append(entry.GeneratedFiles, path)
	w.emit(Event{
		Kind:        EventImageSaved,
		Combination: line,
		Iteration:   iter,
		Path:        path,
	})
	return nil
}

// planFor specializes the run-wide plan with the suffixes the line's matching
// layers contribute.
func (w *Worker) planFor(line string) PlanOptions {
	plan := w.cfg.Plan
	plan.Suffixes = SuffixesFor(line, w.cfg.Layers)
	return plan
}

// percent converts the processed counter into a monotonic 0..100 value.
func (w *Worker) percent(processed, total int) int {
	pct := 100
	if total > 0 {
		pct = processed * 100 / total
	}
	if pct > 100 {
		pct = 100
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if pct < w.lastPercent {
		return w.lastPercent
	}
	w.lastPercent = pct
	return pct
}

func (w *Worker) persist() {
	if w.sink == nil {
		return
	}
	if err := w.sink.PersistProgress(w.progress.Snapshot()); err != nil {
		w.logger.Error().Err(err).Msg("persist progress failed")
	}
}

func (w *Worker) finish() {
	stopped := w.isStopped()
	full := !stopped && w.progress.AllCompleted(w.cfg.Combinations)

	msg := "Generation finished"
	switch {
	case stopped:
		msg = "Generation stopped"
	case full:
		msg = "Generation completed"
	}

	w.mu.Lock()
	pct := w.lastPercent
	if full {
		pct = 100
	}
	w.mu.Unlock()

	w.emit(Event{Kind: EventFinished, Percent: pct, Message: msg, CompletedFully: full})

	w.mu.Lock()
	w.running = false
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()
	close(w.events)
}

// emit never blocks the run; if the consumer falls more than a buffer behind,
// the event is dropped.
func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		w.logger.Debug().Str("kind", string(ev.Kind)).Msg("event dropped, consumer behind")
	}
}
