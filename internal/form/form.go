// Package form holds the client-side state of the exam form: hidden fields,
// the answer inputs of every question and which of them are checked.
package form

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/stemsi/exstem-client/internal/model"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrUnknownOption   = errors.New("unknown option")
)

// FieldName returns the form field carrying the answer of a question.
func FieldName(questionID string) string {
	return "q_" + questionID
}

// Form is safe for concurrent use: the UI host reads it while the session
// controller mutates it.
type Form struct {
	mu        sync.RWMutex
	action    string
	method    string
	hidden    url.Values
	questions []model.Question
	checked   map[string]string
}

// New builds the form for an exam page, pre-checking answers the server
// already has for this attempt.
func New(page *model.ExamPage) *Form {
	f := &Form{
		action:    page.Form.Action,
		method:    strings.ToUpper(page.Form.Method),
		hidden:    url.Values{},
		questions: page.Questions,
		checked:   make(map[string]string, len(page.Questions)),
	}
	if f.method == "" {
		f.method = "POST"
	}
	for k, v := range page.Form.Hidden {
		f.hidden.Set(k, v)
	}
	for qid, key := range page.Answers {
		// Answers the page no longer offers are dropped silently.
		_ = f.Select(qid, key)
	}
	return f
}

// Action is the submit target.
func (f *Form) Action() string { return f.action }

// Method is the upper-cased submit method.
func (f *Form) Method() string { return f.method }

// Questions returns the questions in page order.
func (f *Form) Questions() []model.Question { return f.questions }

// Select checks option key of a question, unchecking its siblings.
func (f *Form) Select(questionID, key string) error {
	q, ok := f.question(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	for _, opt := range q.Options {
		if opt.Key == key {
			f.mu.Lock()
			f.checked[questionID] = key
			f.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %s for question %s", ErrUnknownOption, key, questionID)
}

// Clear unchecks every option of a question.
func (f *Form) Clear(questionID string) error {
	if _, ok := f.question(questionID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	f.mu.Lock()
	delete(f.checked, questionID)
	f.mu.Unlock()
	return nil
}

// Checked returns the checked option of a question, if any.
func (f *Form) Checked(questionID string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	key, ok := f.checked[questionID]
	return key, ok
}

// CheckedCount scans every answer input and counts the checked ones.
func (f *Form) CheckedCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := 0
	for _, q := range f.questions {
		for _, opt := range q.Options {
			if f.checked[q.ID] == opt.Key {
				n++
			}
		}
	}
	return n
}

// Snapshot serializes every field of the form. Unanswered questions are
// sent as empty values.
func (f *Form) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fields := make(url.Values, len(f.hidden)+len(f.questions))
	for k, vs := range f.hidden {
		fields[k] = append([]string(nil), vs...)
	}
	for _, q := range f.questions {
		fields.Set(FieldName(q.ID), f.checked[q.ID])
	}
	return Snapshot{Fields: fields}
}

func (f *Form) question(id string) (model.Question, bool) {
	for _, q := range f.questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}

// Snapshot is a point-in-time copy of the form fields. Seq orders
// autosaves sent by one client run.
type Snapshot struct {
	Fields url.Values
	Seq    uint64
}

// Answered counts non-empty question fields.
func (s Snapshot) Answered() int {
	n := 0
	for k, vs := range s.Fields {
		if strings.HasPrefix(k, "q_") && len(vs) > 0 && vs[0] != "" {
			n++
		}
	}
	return n
}

// Map flattens the snapshot to the first value of each field.
func (s Snapshot) Map() map[string]string {
	m := make(map[string]string, len(s.Fields))
	for k := range s.Fields {
		m[k] = s.Fields.Get(k)
	}
	return m
}

// EncodeURL renders the snapshot as application/x-www-form-urlencoded.
func (s Snapshot) EncodeURL() string {
	return s.Fields.Encode()
}

// EncodeMultipart renders the snapshot as multipart/form-data, fields in
// name order. It returns the body and its Content-Type.
func (s Snapshot) EncodeMultipart() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range s.Fields[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", k, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return body, w.FormDataContentType(), nil
}
