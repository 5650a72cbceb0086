package bulk

import "testing"

func TestProgressUnknownReadsPending(t *testing.T) {
	p := NewProgress(nil)
	e := p.Get("red_car")
	if e.Status != StatusPending || e.IterationsCompleted != 0 {
		t.Fatalf("unexpected zero entry: %+v", e)
	}
}

func TestProgressSnapshotIsDeepCopy(t *testing.T) {
	p := NewProgress(nil)
	p.Set("red_car", Entry{Status: StatusCompleted, GeneratedFiles: []string{"a.png"}})

	snap := p.Snapshot()
	snap["red_car"].GeneratedFiles[0] = "mutated.png"

	if got := p.Get("red_car").GeneratedFiles[0]; got != "a.png" {
		t.Fatalf("snapshot leaked internal state: %q", got)
	}
}

func TestProgressReset(t *testing.T) {
	p := NewProgress(map[string]Entry{
		"red_car":  {Status: StatusCompleted, IterationsCompleted: 2, GeneratedFiles: []string{"1.png", "2.png"}},
		"blue_car": {Status: StatusError, LastError: "boom"},
	})

	removed := p.Reset([]string{"red_car", "blue_car"})
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed files, got %v", removed)
	}
	for _, line := range []string{"red_car", "blue_car"} {
		e := p.Get(line)
		if e.Status != StatusPending || e.IterationsCompleted != 0 || len(e.GeneratedFiles) != 0 || e.LastError != "" {
			t.Fatalf("entry %q not reset: %+v", line, e)
		}
	}
}

func TestProgressAllCompleted(t *testing.T) {
	p := NewProgress(map[string]Entry{
		"a": {Status: StatusCompleted},
		"b": {Status: StatusCompleted},
	})
	if !p.AllCompleted([]string{"a", "b"}) {
		t.Fatalf("expected all completed")
	}
	if p.AllCompleted([]string{"a", "b", "c"}) {
		t.Fatalf("missing entry must not count as completed")
	}
}
