package session

import (
	"context"
	"fmt"
)

// FormatClock renders seconds as zero-padded MM:SS. Minutes are not capped.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// tick renders the current remaining time and then decrements it. At zero it
// hands over to the auto-submit path instead; repeated zero ticks are
// absorbed by the submitted latch.
func (c *Controller) tick(ctx context.Context) {
	if c.state.Remaining <= 0 {
		c.host.ShowTime(FormatClock(0))
		c.autoSubmit(ctx)
		return
	}

	c.host.ShowTime(FormatClock(c.state.Remaining))

	if !c.warned && c.state.Remaining < c.warnBelow {
		c.warned = true
		c.host.ShowWarning()
		c.log.Debug().Int("remaining", c.state.Remaining).Msg("Time warning shown")
	}

	c.state.Remaining--
}
