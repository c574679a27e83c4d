package generator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusFailed // the Store could not be saved
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Done reports whether s is terminal.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

type EventKind int

const (
	EventProgress   EventKind = iota // file fingerprinted
	EventSkipped                     // excluded or already up to date
	EventFileFailed                  // stat or decode failed; the task continues
	EventFinished                    // always last; Status is terminal
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventSkipped:
		return "skipped"
	case EventFileFailed:
		return "file_failed"
	case EventFinished:
		return "finished"
	}
	return "unknown"
}

// Event reports on one file, or on the end of the task. Index is 1-based.
type Event struct {
	Kind     EventKind
	Index    int
	Total    int
	Filename string
	Err      error
	Status   Status
}

// FileError records a file that could not be fingerprinted.
type FileError struct {
	Filename string
	Err      error
}

// Summary is the outcome of a finished task.
type Summary struct {
	Status    Status
	Processed int
	Skipped   int
	Failed    []FileError
	Err       error // set when Status is StatusFailed
}

// Task is the handle of one running generation. Progress can be followed
// through Events or polled with Status and Progress.
type Task struct {
	ID     string
	Folder string

	total  int
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	status  Status
	current int
	summary Summary
}

func newTask(folder string, total int, cancel context.CancelFunc) *Task {
	return &Task{
		ID:     uuid.NewString(),
		Folder: folder,
		total:  total,
		cancel: cancel,
		// one event per file plus the final one; sends never block
		events: make(chan Event, total+1),
		done:   make(chan struct{}),
		status: StatusRunning,
	}
}

// Cancel asks the task to stop before its next file. The file in progress
// is finished first.
func (t *Task) Cancel() { t.cancel() }

// Events is closed after the EventFinished event.
func (t *Task) Events() <-chan Event { return t.events }

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress returns how many files have been visited out of the total.
func (t *Task) Progress() (current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.total
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Summary, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.summary, nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

func (t *Task) emit(ev Event) {
	ev.Total = t.total
	t.mu.Lock()
	if ev.Kind != EventFinished {
		t.current = ev.Index
		switch ev.Kind {
		case EventProgress:
			t.summary.Processed++
		case EventSkipped:
			t.summary.Skipped++
		case EventFileFailed:
			t.summary.Failed = append(t.summary.Failed, FileError{Filename: ev.Filename, Err: ev.Err})
		}
	}
	t.mu.Unlock()
	t.events <- ev
}

func (t *Task) finish(status Status, err error) {
	t.mu.Lock()
	t.status = status
	t.summary.Status = status
	t.summary.Err = err
	t.mu.Unlock()

	t.events <- Event{Kind: EventFinished, Index: t.total, Total: t.total, Err: err, Status: status}
	close(t.events)
	t.cancel()
	close(t.done)
}
