package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/form"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/repository"
)

// ErrAttemptFinished is returned for writes to a submitted or expired attempt.
var ErrAttemptFinished = errors.New("attempt already finished")

// Paths the exam page points the client at.
const (
	SavePath   = "/exam/save"
	SubmitPath = "/exam/submit"
)

// AttemptService is the development stand-in for the exam server: it hands
// out exam pages, records autosaves and submissions. It never grades.
type AttemptService struct {
	repo     repository.AttemptRepository
	set      *QuestionSet
	duration time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(repo repository.AttemptRepository, set *QuestionSet, duration time.Duration, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		repo:     repo,
		set:      set,
		duration: duration,
		now:      time.Now,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates a fresh attempt.
func (s *AttemptService) Start(ctx context.Context) (*model.Attempt, error) {
	a := &model.Attempt{
		ID:        uuid.New().String(),
		ExamID:    s.set.ExamID,
		StartedAt: s.now().UTC(),
		Status:    model.AttemptStatusInProgress,
		Answers:   map[string]string{},
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	s.log.Info().Str("attempt_id", a.ID).Msg("Attempt started")
	return a, nil
}

// Get returns an attempt, finishing it first if its time ran out.
func (s *AttemptService) Get(ctx context.Context, id string) (*model.Attempt, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Finished() && s.expired(a) {
		return s.finish(ctx, id, nil)
	}
	return a, nil
}

// Page builds the exam page for an in-progress attempt.
func (s *AttemptService) Page(ctx context.Context, a *model.Attempt) (*model.ExamPage, error) {
	if a.Finished() {
		return nil, ErrAttemptFinished
	}
	remaining := int(a.StartedAt.Add(s.duration).Sub(s.now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &model.ExamPage{
		ExamID:    a.ExamID,
		Remaining: remaining,
		SaveURL:   SavePath,
		Form: model.FormSpec{
			Action: SubmitPath,
			Method: "POST",
			Hidden: map[string]string{"exam_id": a.ExamID},
		},
		Questions: s.paper(a.ID),
		Answers:   a.Answers,
	}, nil
}

// Save records an autosave. Snapshots older than the newest applied one of
// the same client run are acknowledged but dropped.
func (s *AttemptService) Save(ctx context.Context, id string, seq uint64, runID string, fields map[string]string) (*model.SaveResult, error) {
	stale := false
	_, err := s.repo.Update(ctx, id, func(a *model.Attempt) error {
		if a.Finished() || s.expired(a) {
			return ErrAttemptFinished
		}
		if runID != "" && runID == a.LastRun && seq != 0 && seq <= a.LastSeq {
			stale = true
			return nil
		}
		a.Answers = s.collectAnswers(fields)
		a.LastRun = runID
		a.LastSeq = seq
		a.Saves++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("attempt_id", id).
		Uint64("seq", seq).
		Bool("stale", stale).
		Msg("Autosave received")
	return &model.SaveResult{OK: true, Stale: stale}, nil
}

// Submit stores the final answers and closes the attempt. Submitting a
// finished attempt is a no-op.
func (s *AttemptService) Submit(ctx context.Context, id string, fields map[string]string) (*model.Attempt, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Finished() {
		return a, nil
	}
	answers := s.collectAnswers(fields)
	if s.expired(a) {
		// Late submissions keep whatever autosave captured in time.
		answers = nil
	}
	return s.finish(ctx, id, answers)
}

// Result summarizes a finished attempt.
func (s *AttemptService) Result(ctx context.Context, id string) (*model.AttemptResult, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Finished() {
		return nil, repository.ErrAttemptNotFound
	}
	return &model.AttemptResult{
		AttemptID:  a.ID,
		ExamID:     a.ExamID,
		Answered:   len(a.Answers),
		Total:      len(s.set.Questions),
		Saves:      a.Saves,
		StartedAt:  a.StartedAt,
		FinishedAt: a.FinishedAt,
	}, nil
}

func (s *AttemptService) finish(ctx context.Context, id string, answers map[string]string) (*model.Attempt, error) {
	a, err := s.repo.Update(ctx, id, func(a *model.Attempt) error {
		if a.Finished() {
			return nil
		}
		if answers != nil {
			a.Answers = answers
		}
		now := s.now().UTC()
		a.FinishedAt = &now
		a.Status = model.AttemptStatusFinished
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("attempt_id", id).
		Int("answered", len(a.Answers)).
		Int("saves", a.Saves).
		Msg("Attempt finished")
	return a, nil
}

func (s *AttemptService) expired(a *model.Attempt) bool {
	return s.now().After(a.StartedAt.Add(s.duration))
}

// collectAnswers keeps the non-empty answers of known questions.
func (s *AttemptService) collectAnswers(fields map[string]string) map[string]string {
	answers := make(map[string]string)
	for _, q := range s.set.Questions {
		if v := fields[form.FieldName(q.ID)]; v != "" {
			answers[q.ID] = v
		}
	}
	return answers
}

// paper shuffles options with a seed derived from the attempt ID, so every
// reload of the same attempt shows the same order.
func (s *AttemptService) paper(attemptID string) []model.Question {
	h := fnv.New64a()
	_, _ = h.Write([]byte(attemptID))
	return s.set.Shuffled(rand.New(rand.NewSource(int64(h.Sum64()))))
}

// ParseSeq reads an autosave sequence header; malformed values count as 0.
func ParseSeq(raw string) uint64 {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
