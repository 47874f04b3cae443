package session

import (
	"context"
)

const (
	ConfirmMessage  = "Are you sure you want to submit the exam?"
	AutoSubmitLabel = "Time is up! Submitting..."
)

type origin int

const (
	originUser origin = iota
	originAuto
)

func (o origin) String() string {
	if o == originAuto {
		return "auto"
	}
	return "user"
}

// autoSubmit is the timeout path: latch, lock the submit control and submit
// without asking.
func (c *Controller) autoSubmit(ctx context.Context) {
	if c.state.Submitted {
		return
	}
	c.state.Submitted = true
	c.host.DisableSubmit(AutoSubmitLabel)
	c.submit(ctx, originAuto)
}

// submit is the form's submit handler. A latched session only lets the
// auto path through, so at most one native submission ever happens.
func (c *Controller) submit(ctx context.Context, from origin) {
	if c.phase != PhaseActive {
		return
	}
	if c.state.Submitted && from != originAuto {
		c.log.Debug().Msg("Submit ignored, already submitting")
		return
	}

	if !c.state.Submitted {
		if !c.host.Confirm(ctx, ConfirmMessage) {
			c.log.Debug().Msg("Submit declined")
			return
		}
		c.state.Submitted = true
	}

	c.phase = PhaseSubmitting
	c.host.SetUnsavedWarning(false)

	snap := c.answers.Snapshot()
	c.log.Info().
		Str("origin", from.String()).
		Int("answered", snap.Answered()).
		Int("remaining", c.state.Remaining).
		Msg("Submitting exam")

	target, err := c.submitter.Submit(ctx, snap)
	c.phase = PhaseSubmitted
	c.result = Result{Target: target, Auto: from == originAuto}
	if err != nil {
		c.err = err
		c.log.Error().Err(err).Msg("Exam submission failed")
		return
	}
	c.host.Navigate(target)
}

// guardLeave reports whether leaving needs the unsaved-changes warning.
func (c *Controller) guardLeave() bool {
	return !c.state.Submitted
}
