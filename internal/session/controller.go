package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTickInterval     = time.Second
	DefaultAutosaveInterval = 30 * time.Second
	DefaultWarningThreshold = 60
)

// Options configures a Controller. Zero values take the defaults above.
type Options struct {
	// Remaining is the server-provided time budget in seconds.
	Remaining        int
	TickInterval     time.Duration
	AutosaveInterval time.Duration
	// WarningThreshold in seconds; the timer warns once the displayed time
	// falls below it.
	WarningThreshold int
	Clock            Clock
	Logger           zerolog.Logger
}

// Controller coordinates the countdown, answered counter, autosave loop and
// submission gate of one exam session.
type Controller struct {
	host      Host
	answers   Answers
	saver     Saver
	submitter Submitter
	clock     Clock
	log       zerolog.Logger

	tickEvery time.Duration
	saveEvery time.Duration
	warnBelow int

	// Loop-owned state. Only touched from Run's goroutine.
	state  State
	phase  Phase
	warned bool
	seq    uint64
	result Result
	err    error

	events   chan event
	done     chan struct{}
	started  sync.Once
	inflight sync.WaitGroup
}

// NewController wires a controller. Call Run to start the session.
func NewController(host Host, answers Answers, saver Saver, submitter Submitter, opts Options) *Controller {
	if opts.Remaining < 0 {
		opts.Remaining = 0
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = DefaultWarningThreshold
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	return &Controller{
		host:      host,
		answers:   answers,
		saver:     saver,
		submitter: submitter,
		clock:     opts.Clock,
		log:       opts.Logger.With().Str("component", "exam_session").Logger(),
		tickEvery: opts.TickInterval,
		saveEvery: opts.AutosaveInterval,
		warnBelow: opts.WarningThreshold,
		state:     State{Remaining: opts.Remaining},
		events:    make(chan event, 16),
		done:      make(chan struct{}),
	}
}

// Run drives the session until the exam is submitted or ctx ends (the page
// is left). It must be called once.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	defer close(c.done)

	countdown := c.clock.NewTicker(c.tickEvery)
	defer countdown.Stop()
	autosave := c.clock.NewTicker(c.saveEvery)
	defer autosave.Stop()

	c.log.Info().
		Int("remaining", c.state.Remaining).
		Dur("autosave_every", c.saveEvery).
		Msg("Exam session started")

	c.host.SetUnsavedWarning(true)
	c.recountAnswers()
	c.tick(ctx)

	for c.phase != PhaseSubmitted {
		select {
		case <-ctx.Done():
			c.log.Info().Bool("submitted", c.state.Submitted).Msg("Exam page left")
			c.result.Phase = c.phase
			return c.result, ctx.Err()
		case <-countdown.C():
			c.tick(ctx)
		case <-autosave.C():
			c.autosave(ctx)
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}

	c.result.Phase = c.phase
	return c.result, c.err
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// WaitSaves blocks until every autosave handed off so far has returned.
// The session itself never waits on saves; this exists for orderly process
// exit and tests.
func (c *Controller) WaitSaves() {
	c.inflight.Wait()
}

// ─── Events posted by the host ──────────────────────────────────────

type eventKind int

const (
	eventAnswerChanged eventKind = iota
	eventSubmit
	eventLeave
	eventInspect
)

type event struct {
	kind       eventKind
	questionID string
	key        string
	reply      chan any
}

// Inspection is a read-only view of the loop state.
type Inspection struct {
	State  State
	Phase  Phase
	Warned bool
}

// ChangeAnswer applies an answer change and recounts answered questions.
// An empty key clears the question.
func (c *Controller) ChangeAnswer(ctx context.Context, questionID, key string) error {
	return c.post(ctx, event{kind: eventAnswerChanged, questionID: questionID, key: key})
}

// RequestSubmit is the student pressing the submit control.
func (c *Controller) RequestSubmit(ctx context.Context) error {
	return c.post(ctx, event{kind: eventSubmit})
}

// RequestLeave asks whether leaving the page needs an unsaved-changes
// warning. A closed session never warns.
func (c *Controller) RequestLeave(ctx context.Context) (bool, error) {
	v, err := c.ask(ctx, eventLeave)
	if err == ErrSessionClosed {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Inspect returns the current loop state.
func (c *Controller) Inspect(ctx context.Context) (Inspection, error) {
	v, err := c.ask(ctx, eventInspect)
	if err != nil {
		return Inspection{}, err
	}
	return v.(Inspection), nil
}

func (c *Controller) post(ctx context.Context, ev event) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) ask(ctx context.Context, kind eventKind) (any, error) {
	reply := make(chan any, 1)
	if err := c.post(ctx, event{kind: kind, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.done:
		// The loop may have answered right before exiting.
		select {
		case v := <-reply:
			return v, nil
		default:
			return nil, ErrSessionClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventAnswerChanged:
		c.changeAnswer(ev.questionID, ev.key)
	case eventSubmit:
		c.submit(ctx, originUser)
	case eventLeave:
		ev.reply <- c.guardLeave()
	case eventInspect:
		ev.reply <- Inspection{State: c.state, Phase: c.phase, Warned: c.warned}
	}
}
