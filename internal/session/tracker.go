package session

// changeAnswer applies one input change, then recounts.
func (c *Controller) changeAnswer(questionID, key string) {
	var err error
	if key == "" {
		err = c.answers.Clear(questionID)
	} else {
		err = c.answers.Select(questionID, key)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("question_id", questionID).Msg("Answer change ignored")
		return
	}
	c.recountAnswers()
}

func (c *Controller) recountAnswers() {
	c.host.ShowAnsweredCount(c.answers.CheckedCount())
}
