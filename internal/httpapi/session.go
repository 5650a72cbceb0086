package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"iconforge/internal/bulk"
)

type openSessionRequest struct {
	CombinationsFile string `json:"combinations_file"`
}

type sessionView struct {
	CombinationsFile string                `json:"combinations_file"`
	Combinations     []string              `json:"combinations"`
	NewLines         []string              `json:"new_lines,omitempty"`
	MissingLines     []string              `json:"missing_lines,omitempty"`
	Settings         *bulk.Document        `json:"settings"`
	Running          bool                  `json:"running"`
	Progress         map[string]bulk.Entry `json:"progress"`
}

// OpenSession loads a combinations file together with its settings document,
// seeds the progress store from the persisted state and reports which lines
// are new or have disappeared since the document was last saved.
func (a *App) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.CombinationsFile == "" {
		a.error(w, http.StatusBadRequest, "combinations_file is required")
		return
	}

	lines, err := bulk.LoadCombinations(req.CombinationsFile)
	if err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, found, err := bulk.LoadDocument(req.CombinationsFile)
	if err != nil {
		a.error(w, http.StatusInternalServerError, err.Error())
		return
	}
	var added, missing []string
	if found {
		added, missing = bulk.CompareCombinations(lines, doc.Combinations)
		doc.Combinations = append([]string(nil), lines...)
	} else {
		doc = bulk.NewDocument(req.CombinationsFile, lines)
	}

	a.mu.Lock()
	if a.worker != nil && a.worker.Running() {
		a.mu.Unlock()
		a.error(w, http.StatusConflict, "a run is active; stop it before switching sessions")
		return
	}
	a.session = &session{
		CombinationsFile: req.CombinationsFile,
		Combinations:     lines,
		NewLines:         added,
		MissingLines:     missing,
		Doc:              doc,
	}
	a.progress = bulk.NewProgress(doc.Progress)
	a.worker = nil
	a.mu.Unlock()

	a.writeSession(w)
}

// GetSession returns the current session view.
func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	loaded := a.session != nil
	a.mu.Unlock()
	if !loaded {
		a.error(w, http.StatusNotFound, "no session loaded")
		return
	}
	a.writeSession(w)
}

func (a *App) writeSession(w http.ResponseWriter) {
	a.mu.Lock()
	s := a.session
	view := sessionView{
		CombinationsFile: s.CombinationsFile,
		Combinations:     s.Combinations,
		NewLines:         s.NewLines,
		MissingLines:     s.MissingLines,
		Settings:         s.Doc,
		Running:          a.worker != nil && a.worker.Running(),
		Progress:         a.progress.Snapshot(),
	}
	a.mu.Unlock()
	a.json(w, http.StatusOK, view)
}

type settingsUpdate struct {
	GlobalPrompt         *string  `json:"global_prompt"`
	NegativePrompt       *string  `json:"negative_prompt"`
	ImageModelID         *string  `json:"image_model_id"`
	AspectRatio          *string  `json:"aspect_ratio"`
	IterationsPerCombo   *int     `json:"iterations_per_combo"`
	GlobalFilenamePrefix *string  `json:"global_filename_prefix"`
	OutputFolder         *string  `json:"output_folder"`
	SaveToSingleFolder   *bool    `json:"save_to_single_folder"`
	SubfolderExclusions  []string `json:"subfolder_exclusion_keywords"`
}

// UpdateSettings applies a partial update to the prompt and output settings
// and persists the document. A running worker keeps its own snapshot.
func (a *App) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.withDoc(func(doc *bulk.Document) error {
		if req.GlobalPrompt != nil {
			doc.GlobalPrompt = *req.GlobalPrompt
		}
		if req.NegativePrompt != nil {
			doc.NegativePrompt = *req.NegativePrompt
		}
		if req.ImageModelID != nil {
			doc.ImageModelID = *req.ImageModelID
		}
		if req.AspectRatio != nil {
			doc.AspectRatio = *req.AspectRatio
		}
		if req.IterationsPerCombo != nil {
			doc.IterationsPerCombo = *req.IterationsPerCombo
		}
		if req.GlobalFilenamePrefix != nil {
			doc.GlobalFilenamePrefix = *req.GlobalFilenamePrefix
		}
		if req.OutputFolder != nil {
			doc.OutputFolder = *req.OutputFolder
		}
		if req.SaveToSingleFolder != nil {
			doc.SaveToSingleFolder = *req.SaveToSingleFolder
		}
		if req.SubfolderExclusions != nil {
			doc.SubfolderExclusions = req.SubfolderExclusions
		}
		return nil
	}); err != nil {
		a.writeDocError(w, err)
		return
	}
	a.writeSession(w)
}

// AddSection defines or replaces a section; overlapping lines answer 409
// without changing the document.
func (a *App) AddSection(w http.ResponseWriter, r *http.Request) {
	var sec bulk.Section
	if !a.decode(w, r, &sec) {
		return
	}
	if sec.Name == "" {
		a.error(w, http.StatusBadRequest, "section name is required")
		return
	}
	if err := a.withDoc(func(doc *bulk.Document) error {
		return doc.AddSection(sec)
	}); err != nil {
		a.writeDocError(w, err)
		return
	}
	a.writeSession(w)
}

// RemoveSection drops a section by name.
func (a *App) RemoveSection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.withDoc(func(doc *bulk.Document) error {
		doc.RemoveSection(name)
		return nil
	}); err != nil {
		a.writeDocError(w, err)
		return
	}
	a.writeSession(w)
}

// UpsertLayer adds or replaces a commonality layer; the URL name wins over
// the body.
func (a *App) UpsertLayer(w http.ResponseWriter, r *http.Request) {
	var layer bulk.Layer
	if !a.decode(w, r, &layer) {
		return
	}
	layer.Name = chi.URLParam(r, "name")
	if layer.Name == "" {
		a.error(w, http.StatusBadRequest, "layer name is required")
		return
	}
	if err := a.withDoc(func(doc *bulk.Document) error {
		doc.UpsertLayer(layer)
		return nil
	}); err != nil {
		a.writeDocError(w, err)
		return
	}
	a.writeSession(w)
}

// RemoveLayer drops a layer and its prompt order reference.
func (a *App) RemoveLayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.withDoc(func(doc *bulk.Document) error {
		doc.RemoveLayer(name)
		return nil
	}); err != nil {
		a.writeDocError(w, err)
		return
	}
	a.writeSession(w)
}

// SetOrder replaces the prompt component order.
func (a *App) SetOrder(w http.ResponseWriter, r *http.Request) {
	var order []bulk.Component
	if !a.decode(w, r, &order) {
		return
	}
	if err := a.withDoc(func(doc *bulk.Document) error {
		doc.SetOrder(order)
		return nil
	}); err != nil {
		a.writeDocError(w, err)
		return
	}
	a.writeSession(w)
}

var errNoSession = errors.New("no session loaded")

// withDoc runs a mutation against the session document under lock and saves
// the document afterwards.
func (a *App) withDoc(mutate func(*bulk.Document) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return errNoSession
	}
	if err := mutate(a.session.Doc); err != nil {
		return err
	}
	return a.session.Doc.Save()
}

func (a *App) writeDocError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoSession):
		a.error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bulk.ErrSectionOverlap):
		a.error(w, http.StatusConflict, err.Error())
	default:
		a.error(w, http.StatusInternalServerError, err.Error())
	}
}
