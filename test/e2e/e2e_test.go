//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/form"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/page"
	"github.com/stemsi/exstem-client/internal/transport"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL  string
	client   *http.Client
	jar      http.CookieJar
	examPage *model.ExamPage
	answers  *form.Form
	target   string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	jar = transport.NewJar()
	client = transport.NewClient(jar, 10*time.Second)

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Printf("Exam stub not reachable at %s: %v\n", baseURL, err)
		os.Exit(1)
	}
	resp.Body.Close()

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	ctx := context.Background()
	loader := page.NewLoader(client, zerolog.Nop())
	runID := uuid.NewString()

	// Step 1: Load the exam page (starts an attempt)
	t.Run("LoadPage", func(t *testing.T) {
		p, err := loader.Load(ctx, baseURL+"/exam")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if p.Remaining <= 0 {
			t.Fatalf("expected time left, got %d", p.Remaining)
		}
		examPage = p
		answers = form.New(p)
		t.Logf("Attempt started with %d questions, %ds left", len(p.Questions), p.Remaining)
	})

	// Step 2: Autosave over HTTP
	t.Run("AutosaveHTTP", func(t *testing.T) {
		requirePage(t)
		q := examPage.Questions[0]
		if err := answers.Select(q.ID, q.Options[0].Key); err != nil {
			t.Fatalf("select: %v", err)
		}
		snap := answers.Snapshot()
		snap.Seq = 1
		if err := transport.NewHTTPSaver(client, examPage.SaveURL, runID).Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
	})

	// Step 3: Autosave over WebSocket
	t.Run("AutosaveWS", func(t *testing.T) {
		requirePage(t)
		q := examPage.Questions[1]
		_ = answers.Select(q.ID, q.Options[1].Key)

		wsURL, err := transport.WebSocketURL(examPage.SaveURL)
		if err != nil {
			t.Fatalf("ws url: %v", err)
		}
		saver := transport.NewWSSaver(wsURL, runID, jar, zerolog.Nop())
		defer saver.Close()

		snap := answers.Snapshot()
		snap.Seq = 2
		if err := saver.Save(ctx, snap); err != nil {
			t.Fatalf("save: %v", err)
		}
		// Acknowledgements are not awaited; give the stub a moment.
		time.Sleep(200 * time.Millisecond)
	})

	// Step 4: Reload resumes autosaved answers
	t.Run("ReloadResumes", func(t *testing.T) {
		requirePage(t)
		p, err := loader.Load(ctx, baseURL+"/exam")
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if len(p.Answers) != 2 {
			t.Fatalf("expected 2 resumed answers, got %v", p.Answers)
		}
	})

	// Step 5: Submit the form
	t.Run("Submit", func(t *testing.T) {
		requirePage(t)
		var err error
		target, err = transport.NewFormSubmitter(client, answers.Action(), answers.Method()).Submit(ctx, answers.Snapshot())
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if !strings.Contains(target, "/result/") {
			t.Fatalf("unexpected navigation target %s", target)
		}
	})

	// Step 6: Result page echoes what was recorded
	t.Run("Result", func(t *testing.T) {
		if target == "" {
			t.Skip("no submission")
		}
		resp, err := client.Get(target)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data model.AttemptResult `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Answered != 2 {
			t.Fatalf("expected 2 answers recorded, got %+v", body.Data)
		}
	})

	// Step 7: The page is gone once submitted
	t.Run("FinishedAfterSubmit", func(t *testing.T) {
		if _, err := loader.Load(ctx, baseURL+"/exam"); !errors.Is(err, page.ErrExamFinished) {
			t.Fatalf("expected ErrExamFinished, got %v", err)
		}
	})
}

// ─── Helpers ──────────────────────────────────────────────────────────

func requirePage(t *testing.T) {
	t.Helper()
	if examPage == nil {
		t.Skip("exam page not loaded")
	}
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}
