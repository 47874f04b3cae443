package model

import (
	"time"
)

// AttemptStatus enumerates exam attempt states on the development server.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusFinished   AttemptStatus = "FINISHED"
)

// Attempt is one student's run through the exam, as recorded by the
// development server.
type Attempt struct {
	ID         string            `json:"id"`
	ExamID     string            `json:"exam_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Status     AttemptStatus     `json:"status"`
	Answers    map[string]string `json:"answers"`
	// LastSeq and LastRun identify the newest autosave applied so far.
	LastSeq uint64 `json:"last_seq"`
	LastRun string `json:"last_run,omitempty"`
	Saves   int    `json:"saves"`
}

// Finished reports whether the attempt has been submitted.
func (a *Attempt) Finished() bool {
	return a.Status == AttemptStatusFinished
}

// AttemptResult is what the development server shows after submission.
// No grading happens; it only echoes what was recorded.
type AttemptResult struct {
	AttemptID  string     `json:"attempt_id"`
	ExamID     string     `json:"exam_id"`
	Answered   int        `json:"answered"`
	Total      int        `json:"total"`
	Saves      int        `json:"saves"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// SaveResult is returned by the save endpoint.
type SaveResult struct {
	OK    bool `json:"ok"`
	Stale bool `json:"stale,omitempty"`
}
