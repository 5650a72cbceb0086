package httpapi

import (
	"context"
	"net/http"

	"iconforge/internal/bulk"
	"iconforge/internal/storage"
)

// StartRun snapshots the current settings into a run configuration and
// launches a worker. Only one run exists per controller; starting while one
// is active answers 409.
func (a *App) StartRun(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	if a.session == nil {
		a.mu.Unlock()
		a.error(w, http.StatusNotFound, "no session loaded")
		return
	}
	if a.worker != nil && a.worker.Running() {
		a.mu.Unlock()
		a.error(w, http.StatusConflict, "a run is already active")
		return
	}
	doc := a.session.Doc
	if doc.OutputFolder == "" {
		a.mu.Unlock()
		a.error(w, http.StatusBadRequest, "output_folder is not set")
		return
	}

	store, err := storage.NewStore(doc.OutputFolder)
	if err != nil {
		a.mu.Unlock()
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := doc.RunConfig(a.session.Combinations)
	cfg.RetryDelay = a.cfg.RetryDelay
	cfg.RequestInterval = a.cfg.RequestInterval

	worker := bulk.NewWorker(cfg, a.backends, store, a.progress, a, a.logger)
	a.worker = worker
	a.mu.Unlock()

	// The run outlives this request; it stops through Stop, not through the
	// request context.
	if err := worker.Start(context.Background()); err != nil {
		a.mu.Lock()
		a.worker = nil
		a.mu.Unlock()
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	go a.pumpEvents(worker)

	a.json(w, http.StatusAccepted, map[string]any{
		"combinations": len(cfg.Combinations),
		"iterations":   cfg.Iterations,
		"model":        cfg.ModelID,
	})
}

// pumpEvents drains one worker's stream into the websocket hub and persists
// the settings document when the run ends.
func (a *App) pumpEvents(w *bulk.Worker) {
	for ev := range w.Events() {
		a.hub.broadcast(ev)
		if ev.Kind == bulk.EventFinished {
			if err := a.PersistProgress(a.snapshotProgress()); err != nil {
				a.logger.Error().Err(err).Msg("persist final progress failed")
			}
		}
	}
}

func (a *App) snapshotProgress() map[string]bulk.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.progress == nil {
		return nil
	}
	return a.progress.Snapshot()
}

func (a *App) activeWorker() *bulk.Worker {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.worker == nil || !a.worker.Running() {
		return nil
	}
	return a.worker
}

// PauseRun suspends the active run at the next loop boundary.
func (a *App) PauseRun(w http.ResponseWriter, r *http.Request) {
	worker := a.activeWorker()
	if worker == nil {
		a.error(w, http.StatusConflict, "no active run")
		return
	}
	worker.Pause()
	a.json(w, http.StatusOK, map[string]string{"state": "paused"})
}

// ResumeRun wakes a paused run, including an error pause.
func (a *App) ResumeRun(w http.ResponseWriter, r *http.Request) {
	worker := a.activeWorker()
	if worker == nil {
		a.error(w, http.StatusConflict, "no active run")
		return
	}
	worker.Resume()
	a.json(w, http.StatusOK, map[string]string{"state": "running"})
}

// StopRun terminates the active run.
func (a *App) StopRun(w http.ResponseWriter, r *http.Request) {
	worker := a.activeWorker()
	if worker == nil {
		a.error(w, http.StatusConflict, "no active run")
		return
	}
	worker.Stop()
	a.json(w, http.StatusOK, map[string]string{"state": "stopping"})
}

// RunProgress returns the progress map plus the run state.
func (a *App) RunProgress(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	if a.session == nil {
		a.mu.Unlock()
		a.error(w, http.StatusNotFound, "no session loaded")
		return
	}
	snapshot := a.progress.Snapshot()
	running := a.worker != nil && a.worker.Running()
	a.mu.Unlock()

	a.json(w, http.StatusOK, map[string]any{
		"running":  running,
		"progress": snapshot,
	})
}

type regenerateRequest struct {
	Combinations []string `json:"combinations"`
	DeleteFiles  bool     `json:"delete_files"`
}

// Regenerate resets the chosen combinations to pending so the next run redoes
// them, optionally deleting the files they had produced.
func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Combinations) == 0 {
		a.error(w, http.StatusBadRequest, "combinations is required")
		return
	}

	a.mu.Lock()
	if a.session == nil {
		a.mu.Unlock()
		a.error(w, http.StatusNotFound, "no session loaded")
		return
	}
	if a.worker != nil && a.worker.Running() {
		a.mu.Unlock()
		a.error(w, http.StatusConflict, "stop the active run before regenerating")
		return
	}
	removed := a.progress.Reset(req.Combinations)
	a.session.Doc.Progress = a.progress.Snapshot()
	outputFolder := a.session.Doc.OutputFolder
	saveErr := a.session.Doc.Save()
	a.mu.Unlock()

	if saveErr != nil {
		a.error(w, http.StatusInternalServerError, saveErr.Error())
		return
	}

	deleted := 0
	if req.DeleteFiles && len(removed) > 0 {
		store, err := storage.NewStore(outputFolder)
		if err != nil {
			a.error(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, path := range removed {
			if err := store.Remove(path); err != nil {
				a.logger.Warn().Err(err).Str("path", path).Msg("delete generated file failed")
				continue
			}
			deleted++
		}
	}

	a.json(w, http.StatusOK, map[string]any{
		"reset":         len(req.Combinations),
		"files_deleted": deleted,
	})
}
