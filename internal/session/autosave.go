package session

import (
	"context"
)

// autosave snapshots the whole form and hands it to the saver without
// waiting. Submission is the only thing that stops it; there is no
// change detection, coalescing or retry.
func (c *Controller) autosave(ctx context.Context) {
	if c.state.Submitted {
		return
	}

	c.seq++
	snap := c.answers.Snapshot()
	snap.Seq = c.seq

	// Saves outlive the page: leaving does not cancel an in-flight request.
	saveCtx := context.WithoutCancel(ctx)
	log := c.log.With().Uint64("seq", snap.Seq).Logger()

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.saver.Save(saveCtx, snap); err != nil {
			log.Debug().Err(err).Msg("Autosave failed")
			return
		}
		log.Debug().Int("answered", snap.Answered()).Msg("Autosave sent")
	}()
}
