package bulk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"iconforge/internal/providers/image"
	"iconforge/internal/storage"
)

type fakeGenerator struct {
	calls   atomic.Int64
	fail    bool
	started chan struct{}
	release chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	g.calls.Add(1)
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.fail {
		return nil, errors.New("backend unavailable")
	}
	return &image.Result{Data: []byte("png-bytes"), Format: "png"}, nil
}

func testRunConfig(combos []string, iterations int) RunConfig {
	return RunConfig{
		Combinations: combos,
		Order:        []Component{{Kind: ComponentGlobalPrompt}},
		GlobalPrompt: "flat icon",
		ModelID:      "fake",
		Iterations:   iterations,
		Plan:         PlanOptions{SingleFolder: true},
		RetryDelay:   time.Millisecond,
	}
}

func newTestWorker(t *testing.T, cfg RunConfig, gen image.Generator, progress *Progress) (*Worker, *storage.Store) {
	t.Helper()
	registry := image.NewRegistry()
	registry.Register("fake", gen)
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if progress == nil {
		progress = NewProgress(nil)
	}
	return NewWorker(cfg, registry, store, progress, nil, zerolog.Nop()), store
}

func drain(t *testing.T, w *Worker) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("worker did not finish; events so far: %+v", events)
		}
	}
}

func finalEvent(t *testing.T, events []Event) Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatalf("no events emitted")
	}
	last := events[len(events)-1]
	if last.Kind != EventFinished {
		t.Fatalf("last event is %s, want finished", last.Kind)
	}
	return last
}

func TestWorkerRunGeneratesAllCombinations(t *testing.T) {
	gen := &fakeGenerator{}
	progress := NewProgress(nil)
	w, store := newTestWorker(t, testRunConfig([]string{"red_car", "blue_car"}, 2), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drain(t, w)

	if got := gen.calls.Load(); got != 4 {
		t.Fatalf("expected 4 generator calls, got %d", got)
	}
	last := finalEvent(t, events)
	if !last.CompletedFully || last.Percent != 100 {
		t.Fatalf("unexpected final event: %+v", last)
	}
	for _, line := range []string{"red_car", "blue_car"} {
		e := progress.Get(line)
		if e.Status != StatusCompleted || e.IterationsCompleted != 2 || len(e.GeneratedFiles) != 2 {
			t.Fatalf("entry %q: %+v", line, e)
		}
		for _, path := range e.GeneratedFiles {
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("generated file missing: %v", err)
			}
		}
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "1_red_car.png")); err != nil {
		t.Fatalf("expected single-folder filename: %v", err)
	}
}

func TestWorkerAppliesLayerSuffixesPerCombination(t *testing.T) {
	gen := &fakeGenerator{}
	cfg := testRunConfig([]string{"red_car", "blue_car"}, 1)
	cfg.GlobalPrompt = "photo"
	cfg.Layers = []Layer{{Name: "warm", Filter: "red", Prompt: "warm tones", Suffix: "r"}}
	cfg.Order = append(cfg.Order, Component{Kind: ComponentLayer, Layer: "warm"})
	w, store := newTestWorker(t, cfg, gen, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, w)

	if _, err := os.Stat(filepath.Join(store.BasePath(), "1_red_car_r.png")); err != nil {
		t.Fatalf("matching layer must suffix the filename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "1_blue_car.png")); err != nil {
		t.Fatalf("non-matching layer must not suffix the filename: %v", err)
	}
}

func TestWorkerSkipsCompletedCombinations(t *testing.T) {
	gen := &fakeGenerator{}
	progress := NewProgress(map[string]Entry{
		"red_car": {Status: StatusCompleted, IterationsCompleted: 1},
	})
	w, _ := newTestWorker(t, testRunConfig([]string{"red_car", "blue_car"}, 1), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drain(t, w)

	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected 1 generator call, got %d", got)
	}
	last := finalEvent(t, events)
	if !last.CompletedFully {
		t.Fatalf("resumed run should complete fully: %+v", last)
	}
}

func TestWorkerAllCompletedMakesNoBackendCalls(t *testing.T) {
	gen := &fakeGenerator{}
	progress := NewProgress(map[string]Entry{
		"red_car":  {Status: StatusCompleted, IterationsCompleted: 1},
		"blue_car": {Status: StatusCompleted, IterationsCompleted: 1},
	})
	w, _ := newTestWorker(t, testRunConfig([]string{"red_car", "blue_car"}, 1), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drain(t, w)

	if got := gen.calls.Load(); got != 0 {
		t.Fatalf("expected no generator calls, got %d", got)
	}
	last := finalEvent(t, events)
	if !last.CompletedFully || last.Percent != 100 {
		t.Fatalf("unexpected final event: %+v", last)
	}
}

func TestWorkerResumesFromPartialIterations(t *testing.T) {
	gen := &fakeGenerator{}
	progress := NewProgress(map[string]Entry{
		"red_car": {Status: StatusError, IterationsCompleted: 2},
	})
	w, _ := newTestWorker(t, testRunConfig([]string{"red_car"}, 3), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, w)

	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected only the missing iteration, got %d calls", got)
	}
	if e := progress.Get("red_car"); e.Status != StatusCompleted || e.IterationsCompleted != 3 {
		t.Fatalf("entry not completed: %+v", e)
	}
}

func TestWorkerRetriesThreeTimesThenPauses(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	progress := NewProgress(nil)
	w, _ := newTestWorker(t, testRunConfig([]string{"red_car"}, 1), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		var ev Event
		var ok bool
		select {
		case ev, ok = <-w.Events():
		case <-timeout:
			t.Fatalf("worker never paused; events: %+v", events)
		}
		if !ok {
			break
		}
		events = append(events, ev)
		if ev.Kind == EventPausedOnError {
			w.Stop()
		}
	}

	attempts := 0
	pauses := 0
	for _, ev := range events {
		switch ev.Kind {
		case EventAttemptError:
			attempts++
		case EventPausedOnError:
			pauses++
		}
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempt errors, got %d", attempts)
	}
	if pauses != 1 {
		t.Fatalf("expected 1 pause event, got %d", pauses)
	}
	if got := gen.calls.Load(); got != 3 {
		t.Fatalf("expected 3 backend calls, got %d", got)
	}

	e := progress.Get("red_car")
	if e.Status != StatusError || e.LastError == "" {
		t.Fatalf("entry not marked as error: %+v", e)
	}
	last := finalEvent(t, events)
	if last.CompletedFully {
		t.Fatalf("stopped run must not report full completion")
	}
}

func TestWorkerResumeAfterErrorMovesToNextCombination(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	progress := NewProgress(nil)
	w, _ := newTestWorker(t, testRunConfig([]string{"red_car", "blue_car"}, 1), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	pauses := 0
	timeout := time.After(10 * time.Second)
	for {
		var ev Event
		var ok bool
		select {
		case ev, ok = <-w.Events():
		case <-timeout:
			t.Fatalf("worker hung after %d pauses", pauses)
		}
		if !ok {
			break
		}
		if ev.Kind == EventPausedOnError {
			pauses++
			w.Resume()
		}
	}

	if pauses != 2 {
		t.Fatalf("expected one pause per failed combination, got %d", pauses)
	}
	for _, line := range []string{"red_car", "blue_car"} {
		if e := progress.Get(line); e.Status != StatusError {
			t.Fatalf("entry %q: %+v", line, e)
		}
	}
}

func TestWorkerEmptyPromptRecordsErrorAndContinues(t *testing.T) {
	gen := &fakeGenerator{}
	cfg := testRunConfig([]string{"red_car"}, 1)
	cfg.GlobalPrompt = ""
	progress := NewProgress(nil)
	w, _ := newTestWorker(t, cfg, gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := drain(t, w)

	if got := gen.calls.Load(); got != 0 {
		t.Fatalf("empty prompt must not reach the backend, got %d calls", got)
	}
	sawZeroAttempt := false
	for _, ev := range events {
		if ev.Kind == EventAttemptError && ev.Attempt == 0 {
			sawZeroAttempt = true
		}
		if ev.Kind == EventPausedOnError {
			t.Fatalf("empty prompt must not pause the run")
		}
	}
	if !sawZeroAttempt {
		t.Fatalf("missing attempt-0 error event: %+v", events)
	}
	if e := progress.Get("red_car"); e.Status != StatusError {
		t.Fatalf("entry not marked as error: %+v", e)
	}
	if finalEvent(t, events).CompletedFully {
		t.Fatalf("run with errors must not report full completion")
	}
}

func TestWorkerStopLeavesRemainingCombinationsPending(t *testing.T) {
	gen := &fakeGenerator{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	progress := NewProgress(nil)
	w, _ := newTestWorker(t, testRunConfig([]string{"a", "b", "c"}, 1), gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-gen.started
	w.Stop()
	close(gen.release)

	events := drain(t, w)
	if finalEvent(t, events).CompletedFully {
		t.Fatalf("stopped run must not report full completion")
	}
	for _, line := range []string{"b", "c"} {
		if e := progress.Get(line); e.Status != StatusPending {
			t.Fatalf("entry %q should stay pending: %+v", line, e)
		}
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("stop must prevent further calls, got %d", got)
	}
}

func TestWorkerPauseAndResume(t *testing.T) {
	gen := &fakeGenerator{}
	w, _ := newTestWorker(t, testRunConfig([]string{"a", "b"}, 1), gen, nil)

	w.Pause() // before Start: no-op, worker not running
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Pause()
	w.Resume()
	events := drain(t, w)

	if !finalEvent(t, events).CompletedFully {
		t.Fatalf("paused and resumed run should still complete")
	}
}

func TestWorkerStartTwiceFails(t *testing.T) {
	gen := &fakeGenerator{}
	w, _ := newTestWorker(t, testRunConfig([]string{"a"}, 1), gen, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrRunActive) {
		t.Fatalf("second Start: %v", err)
	}
	drain(t, w)
}

func TestWorkerStartWithoutCombinationsFails(t *testing.T) {
	gen := &fakeGenerator{}
	w, _ := newTestWorker(t, testRunConfig(nil, 1), gen, nil)

	if err := w.Start(context.Background()); !errors.Is(err, ErrNoCombinations) {
		t.Fatalf("expected ErrNoCombinations, got %v", err)
	}
}

func TestWorkerUnknownModelRetriesThenPauses(t *testing.T) {
	cfg := testRunConfig([]string{"red_car"}, 1)
	cfg.ModelID = "no-such-model"
	gen := &fakeGenerator{}
	progress := NewProgress(nil)
	w, _ := newTestWorker(t, cfg, gen, progress)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	attempts := 0
	timeout := time.After(10 * time.Second)
	for {
		var ev Event
		var ok bool
		select {
		case ev, ok = <-w.Events():
		case <-timeout:
			t.Fatalf("worker hung")
		}
		if !ok {
			break
		}
		if ev.Kind == EventAttemptError {
			attempts++
		}
		if ev.Kind == EventPausedOnError {
			w.Stop()
		}
	}

	if attempts != 3 {
		t.Fatalf("expected 3 bounded attempts, got %d", attempts)
	}
	if got := gen.calls.Load(); got != 0 {
		t.Fatalf("unknown model must not reach the registered backend")
	}
}

type recordingSink struct {
	persists atomic.Int64
}

func (s *recordingSink) PersistProgress(snapshot map[string]Entry) error {
	s.persists.Add(1)
	return nil
}

func TestWorkerPersistsAfterEveryCombination(t *testing.T) {
	gen := &fakeGenerator{}
	sink := &recordingSink{}
	registry := image.NewRegistry()
	registry.Register("fake", gen)
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	w := NewWorker(testRunConfig([]string{"a", "b", "c"}, 1), registry, store, NewProgress(nil), sink, zerolog.Nop())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, w)

	if got := sink.persists.Load(); got < 3 {
		t.Fatalf("expected a persist per combination, got %d", got)
	}
}
