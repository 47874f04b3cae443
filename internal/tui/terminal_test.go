package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stemsi/exstem-client/internal/form"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/session"
)

type change struct{ qid, key string }

type fakeControls struct {
	mu       sync.Mutex
	changes  []change
	submits  int
	leaveErr error
	warn     bool
	closed   bool
}

func (f *fakeControls) ChangeAnswer(_ context.Context, qid, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return session.ErrSessionClosed
	}
	f.changes = append(f.changes, change{qid, key})
	return nil
}

func (f *fakeControls) RequestSubmit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return session.ErrSessionClosed
	}
	f.submits++
	return nil
}

func (f *fakeControls) RequestLeave(context.Context) (bool, error) {
	return f.warn, f.leaveErr
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func newTestTerminal() (*Terminal, *syncBuffer) {
	opts := []model.Option{{Key: "a", Text: "Goroutine"}, {Key: "b", Text: "Thread"}}
	page := &model.ExamPage{
		ExamID:  "sample",
		SaveURL: "/exam/save",
		Form:    model.FormSpec{Action: "/exam/submit"},
		Questions: []model.Question{
			{ID: "1", Text: "Lightweight unit of concurrency?", Options: opts},
			{ID: "2", Text: "Started with the go keyword?", Options: opts},
		},
	}
	out := &syncBuffer{}
	return New(out, form.New(page)), out
}

func TestKeysDriveControls(t *testing.T) {
	term, _ := newTestTerminal()
	ctrl := &fakeControls{}

	// 2 selects the second option, j moves on, 1 picks, x clears, 9 is
	// out of range and s submits.
	err := term.Run(context.Background(), strings.NewReader("2j1x9s"), ctrl)
	if err != io.EOF {
		t.Fatalf("expected io.EOF at end of input, got %v", err)
	}

	want := []change{{"1", "b"}, {"2", "a"}, {"2", ""}}
	if len(ctrl.changes) != len(want) {
		t.Fatalf("expected %d changes, got %+v", len(want), ctrl.changes)
	}
	for i, c := range want {
		if ctrl.changes[i] != c {
			t.Fatalf("change %d: expected %+v, got %+v", i, c, ctrl.changes[i])
		}
	}
	if ctrl.submits != 1 {
		t.Fatalf("expected 1 submit request, got %d", ctrl.submits)
	}
}

func TestPrevWrapsAround(t *testing.T) {
	term, _ := newTestTerminal()
	ctrl := &fakeControls{}

	_ = term.Run(context.Background(), strings.NewReader("k1"), ctrl)

	if len(ctrl.changes) != 1 || ctrl.changes[0].qid != "2" {
		t.Fatalf("expected change on last question, got %+v", ctrl.changes)
	}
}

func TestSubmitKeyIgnoredOnceDisabled(t *testing.T) {
	term, _ := newTestTerminal()
	ctrl := &fakeControls{}

	term.DisableSubmit(session.AutoSubmitLabel)
	_ = term.Run(context.Background(), strings.NewReader("s"), ctrl)

	if ctrl.submits != 0 {
		t.Fatalf("expected no submit request, got %d", ctrl.submits)
	}
}

func TestClosedSessionIsNotAnError(t *testing.T) {
	term, _ := newTestTerminal()
	ctrl := &fakeControls{closed: true}

	err := term.Run(context.Background(), strings.NewReader("1s"), ctrl)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestLeaveWarnsThenLeaves(t *testing.T) {
	term, out := newTestTerminal()
	ctrl := &fakeControls{warn: true}

	err := term.Run(context.Background(), strings.NewReader("qq"), ctrl)
	if !errors.Is(err, ErrLeft) {
		t.Fatalf("expected ErrLeft, got %v", err)
	}
	if !strings.Contains(out.String(), "Press q again") {
		t.Fatal("expected a leave warning before leaving")
	}
}

func TestLeaveWarningDisarmedByOtherKeys(t *testing.T) {
	term, _ := newTestTerminal()
	ctrl := &fakeControls{warn: true}

	err := term.Run(context.Background(), strings.NewReader("qjq"), ctrl)
	if err != io.EOF {
		t.Fatalf("expected the second q to warn again, got %v", err)
	}
}

func TestLeaveWithoutWarning(t *testing.T) {
	term, _ := newTestTerminal()
	ctrl := &fakeControls{warn: false}

	err := term.Run(context.Background(), strings.NewReader("\x03"), ctrl)
	if !errors.Is(err, ErrLeft) {
		t.Fatalf("expected ErrLeft on Ctrl-C, got %v", err)
	}
}

func TestConfirmAnsweredFromInput(t *testing.T) {
	for _, tc := range []struct {
		key  string
		want bool
	}{
		{"y", true},
		{"Y", true},
		{"n", false},
		{"s", false},
	} {
		t.Run(tc.key, func(t *testing.T) {
			term, out := newTestTerminal()
			ctrl := &fakeControls{}
			pr, pw := io.Pipe()
			defer pw.Close()

			go func() { _ = term.Run(context.Background(), pr, ctrl) }()

			answer := make(chan bool, 1)
			go func() { answer <- term.Confirm(context.Background(), session.ConfirmMessage) }()

			deadline := time.Now().Add(2 * time.Second)
			for !term.Prompting() {
				if time.Now().After(deadline) {
					t.Fatal("prompt never shown")
				}
				time.Sleep(time.Millisecond)
			}
			if !strings.Contains(out.String(), session.ConfirmMessage) {
				t.Fatal("expected the confirm message on screen")
			}

			if _, err := pw.Write([]byte(tc.key)); err != nil {
				t.Fatalf("write key: %v", err)
			}

			select {
			case got := <-answer:
				if got != tc.want {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("confirm did not return")
			}
			if ctrl.submits != 0 {
				t.Fatal("prompt answer must not reach the controls")
			}
		})
	}
}

func TestConfirmCancelled(t *testing.T) {
	term, _ := newTestTerminal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if term.Confirm(ctx, session.ConfirmMessage) {
		t.Fatal("expected a cancelled prompt to decline")
	}
	if term.Prompting() {
		t.Fatal("prompt should be cleared")
	}
}

func TestRenderShowsState(t *testing.T) {
	term, out := newTestTerminal()

	term.ShowTime("00:59")
	term.ShowWarning()
	term.ShowAnsweredCount(1)
	term.Navigate("http://localhost/result/abc")

	screen := out.String()
	for _, want := range []string{
		red + bold + "00:59" + reset,
		"Answered: 1/2",
		"Question 1 of 2",
		"Lightweight unit of concurrency?",
		"Result: http://localhost/result/abc",
	} {
		if !strings.Contains(screen, want) {
			t.Fatalf("expected screen to contain %q", want)
		}
	}
}
