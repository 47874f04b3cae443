package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/stemsi/exstem-client/internal/model"
)

// MemoryAttemptRepository keeps attempts in process memory.
type MemoryAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt
}

// NewMemoryAttemptRepository creates an empty in-memory repository.
func NewMemoryAttemptRepository() *MemoryAttemptRepository {
	return &MemoryAttemptRepository{attempts: make(map[string]*model.Attempt)}
}

// Create inserts a new attempt.
func (r *MemoryAttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.attempts[a.ID]; exists {
		return fmt.Errorf("attempt %s already exists", a.ID)
	}
	r.attempts[a.ID] = cloneAttempt(a)
	return nil
}

// GetByID retrieves a copy of an attempt.
func (r *MemoryAttemptRepository) GetByID(ctx context.Context, id string) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

// Update applies fn under the repository lock.
func (r *MemoryAttemptRepository) Update(ctx context.Context, id string, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	next := cloneAttempt(a)
	if err := fn(next); err != nil {
		return nil, err
	}
	r.attempts[id] = next
	return cloneAttempt(next), nil
}
