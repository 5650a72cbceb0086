package bulk

import "sync"

// Status is the lifecycle state of one combination within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Entry records what has happened to a single combination so far.
type Entry struct {
	Status              Status   `json:"status"`
	IterationsCompleted int      `json:"iterations_completed"`
	GeneratedFiles      []string `json:"generated_files,omitempty"`
	LastError           string   `json:"last_error,omitempty"`
}

// Progress tracks per-combination state for a run. Only the worker writes to
// it while a run is active; the controller reads through Snapshot.
type Progress struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewProgress builds a Progress store seeded from a previously persisted state
// map. A nil seed starts empty.
func NewProgress(seed map[string]Entry) *Progress {
	entries := make(map[string]Entry, len(seed))
	for line, e := range seed {
		entries[line] = cloneEntry(e)
	}
	return &Progress{entries: entries}
}

// Get returns the entry for a combination; unknown combinations read as
// pending with zero iterations.
func (p *Progress) Get(line string) Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[line]; ok {
		return cloneEntry(e)
	}
	return Entry{Status: StatusPending}
}

// Set replaces the entry for a combination.
func (p *Progress) Set(line string, e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[line] = cloneEntry(e)
}

// Snapshot deep-copies the full progress map.
func (p *Progress) Snapshot() map[string]Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Entry, len(p.entries))
	for line, e := range p.entries {
		out[line] = cloneEntry(e)
	}
	return out
}

// Reset returns the listed combinations to pending and reports the file paths
// they had generated so the caller can delete them.
func (p *Progress) Reset(lines []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var removed []string
	for _, line := range lines {
		if e, ok := p.entries[line]; ok {
			removed = append(removed, e.GeneratedFiles...)
		}
		p.entries[line] = Entry{Status: StatusPending}
	}
	return removed
}

// AllCompleted reports whether every one of the given combinations has
// finished successfully.
func (p *Progress) AllCompleted(lines []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range lines {
		if p.entries[line].Status != StatusCompleted {
			return false
		}
	}
	return true
}

func cloneEntry(e Entry) Entry {
	out := e
	if e.GeneratedFiles != nil {
		out.GeneratedFiles = append([]string(nil), e.GeneratedFiles...)
	}
	return out
}
