package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stemsi/exstem-client/internal/form"
)

// FormSubmitter performs the native submission of the exam form: the form's
// method and action, urlencoded fields, redirects followed like a browser
// navigation.
type FormSubmitter struct {
	client *http.Client
	action string
	method string
}

// NewFormSubmitter creates a submitter for a form target.
func NewFormSubmitter(client *http.Client, action, method string) *FormSubmitter {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodPost
	}
	return &FormSubmitter{client: client, action: action, method: method}
}

// Submit sends the form and returns the URL the navigation ended on.
func (s *FormSubmitter) Submit(ctx context.Context, snap form.Snapshot) (string, error) {
	var req *http.Request
	var err error

	if s.method == http.MethodGet {
		target := s.action
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target+sep+snap.EncodeURL(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, s.method, s.action, strings.NewReader(snap.EncodeURL()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit exam: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("submit exam: %w", statusError(resp))
	}
	return resp.Request.URL.String(), nil
}
