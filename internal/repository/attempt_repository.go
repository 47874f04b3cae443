package repository

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-client/internal/model"
)

// ErrAttemptNotFound is returned when no attempt exists for an ID.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptRepository stores exam attempts for the development server.
type AttemptRepository interface {
	// Create inserts a new attempt. The ID must be unique.
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id string) (*model.Attempt, error)
	// Update applies fn to the stored attempt atomically. If fn returns an
	// error nothing is written.
	Update(ctx context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error)
}

func cloneAttempt(a *model.Attempt) *model.Attempt {
	c := *a
	c.Answers = make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		c.Answers[k] = v
	}
	if a.FinishedAt != nil {
		t := *a.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
