// Package tui is a terminal host for an exam session: it draws the timer,
// the answered counter and the current question, and turns key presses
// into session events.
package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/stemsi/exstem-client/internal/form"
	"github.com/stemsi/exstem-client/internal/session"
)

var _ session.Host = (*Terminal)(nil)

// ErrLeft is returned by Run when the student leaves the exam page.
var ErrLeft = errors.New("left exam page")

const (
	keyCtrlC = 0x03
	keyLeave = 'q'
	keyNext  = 'j'
	keyPrev  = 'k'
	keyClear = 'x'
	keySend  = 's'
)

const (
	clearScreen = "\033[H\033[2J"
	red         = "\033[31m"
	bold        = "\033[1m"
	reset       = "\033[0m"
)

// Controls is what the terminal drives on the session.
type Controls interface {
	ChangeAnswer(ctx context.Context, questionID, key string) error
	RequestSubmit(ctx context.Context) error
	RequestLeave(ctx context.Context) (bool, error)
}

// Terminal implements session.Host on an ANSI terminal.
type Terminal struct {
	out  io.Writer
	form *form.Form

	mu             sync.Mutex
	timer          string
	warning        bool
	answered       int
	submitLabel    string
	submitDisabled bool
	unsaved        bool
	cursor         int
	notice         string
	leaveArmed     bool
	prompt         chan bool
	promptMsg      string
}

// New creates a terminal host drawing f to out.
func New(out io.Writer, f *form.Form) *Terminal {
	return &Terminal{
		out:         out,
		form:        f,
		timer:       "--:--",
		submitLabel: "Submit",
	}
}

// ─── session.Host ───────────────────────────────────────────────────

func (t *Terminal) ShowTime(display string) {
	t.update(func() { t.timer = display })
}

func (t *Terminal) ShowWarning() {
	t.update(func() { t.warning = true })
}

func (t *Terminal) ShowAnsweredCount(n int) {
	t.update(func() { t.answered = n })
}

func (t *Terminal) DisableSubmit(label string) {
	t.update(func() {
		t.submitDisabled = true
		t.submitLabel = label
	})
}

func (t *Terminal) SetUnsavedWarning(on bool) {
	t.update(func() { t.unsaved = on })
}

func (t *Terminal) Navigate(target string) {
	t.update(func() {
		t.notice = "Exam submitted. Result: " + target
	})
}

// Confirm shows a yes/no prompt and blocks until Run reads the answer.
func (t *Terminal) Confirm(ctx context.Context, message string) bool {
	ch := make(chan bool, 1)
	t.update(func() {
		t.prompt = ch
		t.promptMsg = message
	})
	defer t.update(func() {
		t.prompt = nil
		t.promptMsg = ""
	})

	select {
	case ok := <-ch:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Prompting reports whether a confirmation is waiting for an answer.
func (t *Terminal) Prompting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prompt != nil
}

// ─── Input ──────────────────────────────────────────────────────────

// Run reads key presses from in until the student leaves or in ends.
// It expects in to be in raw mode when it is a terminal.
func (t *Terminal) Run(ctx context.Context, in io.Reader, ctrl Controls) error {
	r := bufio.NewReader(in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if t.answerPrompt(b) {
			continue
		}
		if err := t.handleKey(ctx, b, ctrl); err != nil {
			return err
		}
	}
}

func (t *Terminal) answerPrompt(b byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prompt == nil {
		return false
	}
	t.prompt <- b == 'y' || b == 'Y'
	t.prompt = nil
	return true
}

func (t *Terminal) handleKey(ctx context.Context, b byte, ctrl Controls) error {
	if b == keyLeave || b == keyCtrlC {
		return t.leave(ctx, ctrl)
	}
	t.update(func() { t.leaveArmed = false })

	switch {
	case b == keyNext:
		t.move(1)
	case b == keyPrev:
		t.move(-1)
	case b == keySend:
		if t.isSubmitDisabled() {
			return nil
		}
		return ignoreClosed(ctrl.RequestSubmit(ctx))
	case b == keyClear:
		return ignoreClosed(ctrl.ChangeAnswer(ctx, t.currentQuestion(), ""))
	case b >= '1' && b <= '9':
		key, ok := t.optionKey(int(b - '1'))
		if !ok {
			return nil
		}
		return ignoreClosed(ctrl.ChangeAnswer(ctx, t.currentQuestion(), key))
	}
	return nil
}

// leave is the navigation guard: a first attempt is only warned about
// while the exam is unsubmitted, a second one goes through.
func (t *Terminal) leave(ctx context.Context, ctrl Controls) error {
	warn, err := ctrl.RequestLeave(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	armed := t.leaveArmed
	t.mu.Unlock()

	if !warn || armed {
		return ErrLeft
	}
	t.update(func() {
		t.leaveArmed = true
		t.notice = "You have unsaved changes. Press q again to leave the exam."
	})
	return nil
}

func (t *Terminal) move(delta int) {
	n := len(t.form.Questions())
	t.update(func() {
		t.cursor = (t.cursor + delta + n) % n
		t.notice = ""
	})
}

func (t *Terminal) currentQuestion() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.form.Questions()[t.cursor].ID
}

func (t *Terminal) optionKey(i int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	opts := t.form.Questions()[t.cursor].Options
	if i >= len(opts) {
		return "", false
	}
	return opts[i].Key, true
}

func (t *Terminal) isSubmitDisabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submitDisabled
}

// ignoreClosed treats a finished session as a non-event for key presses.
func ignoreClosed(err error) error {
	if errors.Is(err, session.ErrSessionClosed) {
		return nil
	}
	return err
}

// ─── Rendering ──────────────────────────────────────────────────────

func (t *Terminal) update(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
	t.render()
}

// render redraws the whole screen. Callers hold t.mu.
func (t *Terminal) render() {
	var b strings.Builder
	questions := t.form.Questions()

	b.WriteString(clearScreen)

	timer := t.timer
	if t.warning {
		timer = red + bold + timer + reset
	}
	fmt.Fprintf(&b, "ExStem exam    Time left: %s    Answered: %d/%d\r\n\r\n", timer, t.answered, len(questions))

	if len(questions) > 0 {
		q := questions[t.cursor]
		checked, _ := t.form.Checked(q.ID)
		fmt.Fprintf(&b, "Question %d of %d\r\n%s\r\n\r\n", t.cursor+1, len(questions), q.Text)
		for i, opt := range q.Options {
			mark := " "
			if opt.Key == checked {
				mark = "x"
			}
			fmt.Fprintf(&b, "  (%d) [%s] %s\r\n", i+1, mark, opt.Text)
		}
	}

	submit := "[s] " + t.submitLabel
	if t.submitDisabled {
		submit = t.submitLabel
	}
	fmt.Fprintf(&b, "\r\n%s   [j/k] next/prev   [1-9] answer   [x] clear   [q] leave\r\n", submit)

	if t.notice != "" {
		fmt.Fprintf(&b, "\r\n%s\r\n", t.notice)
	}
	if t.promptMsg != "" {
		fmt.Fprintf(&b, "\r\n%s [y/N] ", t.promptMsg)
	}

	_, _ = io.WriteString(t.out, b.String())
}
