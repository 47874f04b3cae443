// Package session runs one timed exam session on the client: the countdown,
// the answered-question counter, periodic autosave and the submission gate.
//
// All session state is owned by a single event-loop goroutine started by
// Controller.Run. Host callbacks are invoked from that goroutine, one at a
// time, so hosts need no locking for calls coming from the controller.
package session

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-client/internal/form"
)

// ErrSessionClosed is returned when posting to a controller whose loop has
// ended, either because the exam was submitted or the page was left.
var ErrSessionClosed = errors.New("exam session closed")

// State is the mutable session state shared by every handler.
type State struct {
	// Remaining seconds; set once at load, only ever decremented.
	Remaining int
	// Submitted latches false → true and never goes back.
	Submitted bool
}

// Phase is the submission gate state.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseSubmitting
	PhaseSubmitted
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Host is the UI collaborator that displays the session and talks to the
// student.
type Host interface {
	// ShowTime renders the countdown as MM:SS.
	ShowTime(display string)
	// ShowWarning switches the timer to its warning look. Called once.
	ShowWarning()
	ShowAnsweredCount(n int)
	// DisableSubmit disables the submit control and relabels it.
	DisableSubmit(label string)
	// Confirm blocks until the student accepts or declines.
	Confirm(ctx context.Context, message string) bool
	// SetUnsavedWarning tells the host whether leaving must be warned about.
	SetUnsavedWarning(on bool)
	// Navigate moves the host to the page the submission landed on.
	Navigate(target string)
}

// Answers is the exam form as seen by the controller.
type Answers interface {
	Select(questionID, key string) error
	Clear(questionID string) error
	CheckedCount() int
	Snapshot() form.Snapshot
}

// Saver persists a snapshot. The controller never waits for it.
type Saver interface {
	Save(ctx context.Context, snap form.Snapshot) error
}

// Submitter performs the native form submission and returns the navigation
// target.
type Submitter interface {
	Submit(ctx context.Context, snap form.Snapshot) (string, error)
}

// Result describes how a session ended.
type Result struct {
	Phase Phase
	// Target is where the submission navigated to; empty if not submitted.
	Target string
	// Auto is true when the countdown submitted the exam.
	Auto bool
}
