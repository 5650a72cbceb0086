package bulk

// EventKind labels the messages the worker emits while a run executes.
type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventImageSaved    EventKind = "image_saved"
	EventAttemptError  EventKind = "attempt_error"
	EventPausedOnError EventKind = "paused_due_to_error"
	EventFinished      EventKind = "finished"
)

// Event is one message on the worker's outbound stream. Fields beyond Kind
// are populated where they apply: Percent and Message on progress updates,
// Combination/Iteration/Attempt on per-item events, Path on saved images, and
// CompletedFully on the final event.
type Event struct {
	Kind           EventKind `json:"kind"`
	Percent        int       `json:"percent,omitempty"`
	Message        string    `json:"message,omitempty"`
	Combination    string    `json:"combination,omitempty"`
	Iteration      int       `json:"iteration,omitempty"`
	Attempt        int       `json:"attempt,omitempty"`
	Path           string    `json:"path,omitempty"`
	CompletedFully bool      `json:"completed_fully,omitempty"`
}
