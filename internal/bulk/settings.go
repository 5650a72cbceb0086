package bulk

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSectionOverlap is returned when a new section claims a line that an
// existing section already holds.
var ErrSectionOverlap = errors.New("bulk: section lines overlap an existing section")

// Document is the persisted settings bundle stored next to the combinations
// file. One document describes one combinations file: the prompt inputs, the
// output plan and the per-combination progress of previous runs.
type Document struct {
	SourceCombinationsFile string           `json:"source_combinations_file"`
	Combinations           []string         `json:"combinations"`
	Sections               []Section        `json:"sections_data"`
	Layers                 []Layer          `json:"commonality_layers_data"`
	Order                  []Component      `json:"prompt_component_order"`
	GlobalPrompt           string           `json:"global_prompt"`
	NegativePrompt         string           `json:"negative_prompt"`
	ImageModelID           string           `json:"image_model_id"`
	AspectRatio            string           `json:"aspect_ratio"`
	IterationsPerCombo     int              `json:"iterations_per_combo"`
	GlobalFilenamePrefix   string           `json:"global_filename_prefix"`
	OutputFolder           string           `json:"output_folder"`
	SaveToSingleFolder     bool             `json:"save_to_single_folder"`
	SubfolderExclusions    []string         `json:"subfolder_exclusion_keywords"`
	Progress               map[string]Entry `json:"generation_progress_state"`
}

// NewDocument returns a document with usable defaults for a fresh
// combinations file.
func NewDocument(combinationsFile string, combinations []string) *Document {
	return &Document{
		SourceCombinationsFile: combinationsFile,
		Combinations:           append([]string(nil), combinations...),
		Order:                  []Component{{Kind: ComponentGlobalPrompt}, {Kind: ComponentSectionPrompt}},
		IterationsPerCombo:     1,
		Progress:               map[string]Entry{},
	}
}

// SettingsPath returns the settings document path for a combinations file.
func SettingsPath(combinationsFile string) string {
	return combinationsFile + ".bulk_settings.json"
}

// LoadDocument reads the settings document belonging to a combinations file.
// A missing document is not an error; ok reports whether one was found.
func LoadDocument(combinationsFile string) (doc *Document, ok bool, err error) {
	data, err := os.ReadFile(SettingsPath(combinationsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("bulk: read settings: %w", err)
	}
	doc = &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, false, fmt.Errorf("bulk: decode settings: %w", err)
	}
	if doc.Progress == nil {
		doc.Progress = map[string]Entry{}
	}
	doc.NormalizeOrder()
	return doc, true, nil
}

// Save writes the document next to its combinations file.
func (d *Document) Save() error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("bulk: encode settings: %w", err)
	}
	if err := os.WriteFile(SettingsPath(d.SourceCombinationsFile), data, 0o644); err != nil {
		return fmt.Errorf("bulk: write settings: %w", err)
	}
	return nil
}

// AddSection registers a new section. Lines already claimed by another section
// reject the whole call without mutating the document.
func (d *Document) AddSection(sec Section) error {
	for _, line := range sec.Lines {
		for _, existing := range d.Sections {
			if existing.Name != sec.Name && existing.Contains(line) {
				return fmt.Errorf("%w: %q in section %q", ErrSectionOverlap, line, existing.Name)
			}
		}
	}
	for i, existing := range d.Sections {
		if existing.Name == sec.Name {
			d.Sections[i] = sec
			return nil
		}
	}
	d.Sections = append(d.Sections, sec)
	return nil
}

// RemoveSection drops a section by name; removing an unknown section is a
// no-op.
func (d *Document) RemoveSection(name string) {
	for i, sec := range d.Sections {
		if sec.Name == name {
			d.Sections = append(d.Sections[:i], d.Sections[i+1:]...)
			return
		}
	}
}

// UpsertLayer adds or replaces a layer and keeps the component order in sync.
func (d *Document) UpsertLayer(layer Layer) {
	for i, existing := range d.Layers {
		if existing.Name == layer.Name {
			d.Layers[i] = layer
			d.NormalizeOrder()
			return
		}
	}
	d.Layers = append(d.Layers, layer)
	d.NormalizeOrder()
}

// RemoveLayer drops a layer and its component order reference.
func (d *Document) RemoveLayer(name string) {
	for i, layer := range d.Layers {
		if layer.Name == name {
			d.Layers = append(d.Layers[:i], d.Layers[i+1:]...)
			break
		}
	}
	d.NormalizeOrder()
}

// SetOrder replaces the component order and then normalizes it, so unknown
// references are dropped and missing components reinstated.
func (d *Document) SetOrder(order []Component) {
	d.Order = append([]Component(nil), order...)
	d.NormalizeOrder()
}

// NormalizeOrder reconciles the component order with the current document:
// stale layer references are removed, duplicates collapse to the first
// occurrence, and any component not yet listed is appended at the end.
func (d *Document) NormalizeOrder() {
	known := make(map[string]bool, len(d.Layers))
	for _, layer := range d.Layers {
		known[layer.Name] = true
	}

	seen := make(map[Component]bool, len(d.Order))
	order := make([]Component, 0, len(d.Order))
	for _, comp := range d.Order {
		switch comp.Kind {
		case ComponentGlobalPrompt, ComponentSectionPrompt:
			comp.Layer = ""
		case ComponentLayer:
			if !known[comp.Layer] {
				continue
			}
		default:
			continue
		}
		if seen[comp] {
			continue
		}
		seen[comp] = true
		order = append(order, comp)
	}

	for _, comp := range []Component{{Kind: ComponentGlobalPrompt}, {Kind: ComponentSectionPrompt}} {
		if !seen[comp] {
			seen[comp] = true
			order = append(order, comp)
		}
	}
	for _, layer := range d.Layers {
		comp := Component{Kind: ComponentLayer, Layer: layer.Name}
		if !seen[comp] {
			seen[comp] = true
			order = append(order, comp)
		}
	}

	d.Order = order
}

// PlanOptions derives the filename planning settings from the document.
func (d *Document) PlanOptions() PlanOptions {
	return PlanOptions{
		Prefix:       d.GlobalFilenamePrefix,
		SingleFolder: d.SaveToSingleFolder,
		Exclusions:   append([]string(nil), d.SubfolderExclusions...),
	}
}

// RunConfig snapshots the document into an immutable run configuration over
// the given combinations.
func (d *Document) RunConfig(combinations []string) RunConfig {
	iterations := d.IterationsPerCombo
	if iterations < 1 {
		iterations = 1
	}
	return RunConfig{
		Combinations:   append([]string(nil), combinations...),
		Order:          append([]Component(nil), d.Order...),
		GlobalPrompt:   d.GlobalPrompt,
		NegativePrompt: d.NegativePrompt,
		Sections:       cloneSections(d.Sections),
		Layers:         append([]Layer(nil), d.Layers...),
		ModelID:        d.ImageModelID,
		AspectRatio:    d.AspectRatio,
		Iterations:     iterations,
		Plan:           d.PlanOptions(),
	}
}

func cloneSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	for i, sec := range sections {
		out[i] = sec
		out[i].Lines = append([]string(nil), sec.Lines...)
	}
	return out
}

// LoadCombinations reads a combinations file: one combination per line,
// trimmed, blank lines skipped.
func LoadCombinations(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bulk: open combinations file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bulk: read combinations file: %w", err)
	}
	return lines, nil
}

// CompareCombinations reports which of the current lines were not present in
// the previous snapshot and which previous lines have disappeared.
func CompareCombinations(current, previous []string) (added, missing []string) {
	prev := make(map[string]bool, len(previous))
	for _, line := range previous {
		prev[line] = true
	}
	cur := make(map[string]bool, len(current))
	for _, line := range current {
		cur[line] = true
		if !prev[line] {
			added = append(added, line)
		}
	}
	for _, line := range previous {
		if !cur[line] {
			missing = append(missing, line)
		}
	}
	return added, missing
}
