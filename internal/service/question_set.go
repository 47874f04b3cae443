package service

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/validator"
)

// QuestionSet is the fixed exam the development server hands out.
type QuestionSet struct {
	ExamID    string           `json:"exam_id" validate:"required"`
	Questions []model.Question `json:"questions" validate:"required,min=1,dive"`
}

// LoadQuestionSet reads a question set from a JSON file. An empty path
// returns the built-in sample set.
func LoadQuestionSet(path string) (*QuestionSet, error) {
	if path == "" {
		return DefaultQuestionSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	var qs QuestionSet
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("decode question file: %w", err)
	}
	if err := validator.FieldError(validator.Struct(&qs)); err != nil {
		return nil, fmt.Errorf("invalid question file: %w", err)
	}
	return &qs, nil
}

// Shuffled returns the questions with options in a random order per
// attempt. Option keys are re-assigned a, b, c... after shuffling.
func (qs *QuestionSet) Shuffled(rng *rand.Rand) []model.Question {
	out := make([]model.Question, len(qs.Questions))
	keys := "abcdefghijklmnopqrstuvwxyz"
	for i, q := range qs.Questions {
		opts := append([]model.Option(nil), q.Options...)
		rng.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		for j := range opts {
			if j < len(keys) {
				opts[j].Key = string(keys[j])
			}
		}
		out[i] = model.Question{ID: q.ID, Text: q.Text, Options: opts}
	}
	return out
}

// DefaultQuestionSet is a small sample exam.
func DefaultQuestionSet() *QuestionSet {
	mk := func(id, text string, options ...string) model.Question {
		q := model.Question{ID: id, Text: text}
		for i, o := range options {
			q.Options = append(q.Options, model.Option{Key: string(rune('a' + i)), Text: o})
		}
		return q
	}
	return &QuestionSet{
		ExamID: "sample",
		Questions: []model.Question{
			mk("1", "Which keyword starts a goroutine?", "go", "async", "spawn", "thread"),
			mk("2", "What does len(nil slice) return?", "0", "panic", "-1", "nil"),
			mk("3", "Which package provides HTTP servers?", "net/http", "http/server", "web", "io/http"),
			mk("4", "How are interfaces satisfied?", "Implicitly", "With implements", "With extends", "Via generics"),
			mk("5", "Which statement waits on channels?", "select", "switch", "await", "wait"),
		},
	}
}
