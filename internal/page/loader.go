// Package page loads the exam page descriptor that initializes a session.
package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/validator"
)

// ErrExamFinished means the server has no active attempt to show: it was
// already submitted or its time ran out.
var ErrExamFinished = errors.New("exam already finished")

// Error codes the exam server uses in its response envelope.
const (
	codeExamFinished = "EXAM_FINISHED"
)

type envelope struct {
	Data  *model.ExamPage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Loader fetches exam pages.
type Loader struct {
	client *http.Client
	log    zerolog.Logger
}

// NewLoader creates a Loader. The client's jar keeps the attempt cookie the
// server sets on load.
func NewLoader(client *http.Client, log zerolog.Logger) *Loader {
	return &Loader{
		client: client,
		log:    log.With().Str("component", "page_loader").Logger(),
	}
}

// Load fetches and validates the page at pageURL. Relative save and submit
// URLs are resolved against the page URL.
func (l *Loader) Load(ctx context.Context, pageURL string) (*model.ExamPage, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exam page: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode exam page (%s): %w", resp.Status, err)
	}
	if env.Error != nil {
		if env.Error.Code == codeExamFinished {
			return nil, ErrExamFinished
		}
		return nil, fmt.Errorf("exam page: %s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || env.Data == nil {
		return nil, fmt.Errorf("exam page: unexpected status %s", resp.Status)
	}

	p := env.Data
	if err := validator.FieldError(validator.Struct(p)); err != nil {
		return nil, fmt.Errorf("invalid exam page: %w", err)
	}

	if p.SaveURL, err = resolve(base, p.SaveURL); err != nil {
		return nil, fmt.Errorf("save URL: %w", err)
	}
	if p.Form.Action, err = resolve(base, p.Form.Action); err != nil {
		return nil, fmt.Errorf("form action: %w", err)
	}

	l.log.Info().
		Str("exam_id", p.ExamID).
		Int("questions", len(p.Questions)).
		Int("answered", len(p.Answers)).
		Int("remaining", p.Remaining).
		Msg("Exam page loaded")

	return p, nil
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}
