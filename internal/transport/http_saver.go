package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-client/internal/form"
)

// HTTPSaver posts snapshots as multipart/form-data to the save endpoint.
// It reports transport failures but never inspects the response body.
type HTTPSaver struct {
	client *http.Client
	url    string
	runID  string
}

// NewHTTPSaver creates a saver for one client run.
func NewHTTPSaver(client *http.Client, saveURL, runID string) *HTTPSaver {
	return &HTTPSaver{client: client, url: saveURL, runID: runID}
}

// Save sends one snapshot.
func (s *HTTPSaver) Save(ctx context.Context, snap form.Snapshot) error {
	body, contentType, err := snap.EncodeMultipart()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderAutosaveSeq, strconv.FormatUint(snap.Seq, 10))
	req.Header.Set(HeaderClientRun, s.runID)
	req.Header.Set(HeaderRequestID, uuid.New().String())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post snapshot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp)
	}
	return nil
}
