package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/form"
	"github.com/stemsi/exstem-client/internal/handler"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/page"
	"github.com/stemsi/exstem-client/internal/repository"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/session"
	"github.com/stemsi/exstem-client/internal/transport"
)

func newStub(t *testing.T, duration time.Duration, saveRate int) *httptest.Server {
	t.Helper()
	cfg := &config.Config{GinMode: "test", SaveRate: saveRate}
	log := zerolog.Nop()

	attempts := service.NewAttemptService(repository.NewMemoryAttemptRepository(), service.DefaultQuestionSet(), duration, log)
	handlers := &Handlers{
		Exam: handler.NewExamHandler(attempts),
		WS:   handler.NewWSHandler(attempts, log, nil),
	}
	srv := httptest.NewServer(SetupRouter(attempts, handlers, cfg, log))
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	jar  http.CookieJar
	http *http.Client
	page *page.Loader
}

func newClient() *client {
	jar := transport.NewJar()
	c := transport.NewClient(jar, 5*time.Second)
	return &client{jar: jar, http: c, page: page.NewLoader(c, zerolog.Nop())}
}

func (c *client) load(t *testing.T, url string) *model.ExamPage {
	t.Helper()
	p, err := c.page.Load(context.Background(), url)
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	return p
}

func TestExamFlowOverHTTP(t *testing.T) {
	srv := newStub(t, 20*time.Minute, 0)
	c := newClient()
	ctx := context.Background()

	p := c.load(t, srv.URL+"/exam")
	if p.Remaining <= 0 || p.Remaining > 20*60 {
		t.Fatalf("unexpected remaining time %d", p.Remaining)
	}

	f := form.New(p)
	q := p.Questions[0]
	if err := f.Select(q.ID, q.Options[1].Key); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := f.Snapshot()
	snap.Seq = 1
	if err := transport.NewHTTPSaver(c.http, p.SaveURL, "run-1").Save(ctx, snap); err != nil {
		t.Fatalf("autosave: %v", err)
	}

	resumed := c.load(t, srv.URL+"/exam")
	if resumed.Answers[q.ID] != q.Options[1].Key {
		t.Fatalf("expected autosaved answer on reload, got %v", resumed.Answers)
	}

	target, err := transport.NewFormSubmitter(c.http, f.Action(), f.Method()).Submit(ctx, f.Snapshot())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasPrefix(target, srv.URL+"/result/") {
		t.Fatalf("expected navigation to the result page, got %s", target)
	}

	resp, err := c.http.Get(target)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Data model.AttemptResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if body.Data.Answered != 1 || body.Data.Saves != 1 {
		t.Fatalf("unexpected result: %+v", body.Data)
	}

	if _, err := c.page.Load(ctx, srv.URL+"/exam"); !errors.Is(err, page.ErrExamFinished) {
		t.Fatalf("expected ErrExamFinished after submission, got %v", err)
	}
}

func TestAutosaveOverWebSocket(t *testing.T) {
	srv := newStub(t, 20*time.Minute, 0)
	c := newClient()
	ctx := context.Background()

	p := c.load(t, srv.URL+"/exam")
	f := form.New(p)
	q := p.Questions[2]
	_ = f.Select(q.ID, q.Options[0].Key)

	wsURL, err := transport.WebSocketURL(p.SaveURL)
	if err != nil {
		t.Fatalf("ws url: %v", err)
	}
	saver := transport.NewWSSaver(wsURL, "run-ws", c.jar, zerolog.Nop())
	defer saver.Close()

	snap := f.Snapshot()
	snap.Seq = 1
	if err := saver.Save(ctx, snap); err != nil {
		t.Fatalf("autosave: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if c.load(t, srv.URL+"/exam").Answers[q.ID] == q.Options[0].Key {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("WebSocket autosave never reached the server")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAttemptRoutesNeedCookie(t *testing.T) {
	srv := newStub(t, 20*time.Minute, 0)

	resp, err := http.Post(srv.URL+service.SavePath, "application/x-www-form-urlencoded", strings.NewReader("q_1=a"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSaveRateLimited(t *testing.T) {
	srv := newStub(t, 20*time.Minute, 1)
	c := newClient()
	ctx := context.Background()

	p := c.load(t, srv.URL+"/exam")
	saver := transport.NewHTTPSaver(c.http, p.SaveURL, "run")
	snap := form.New(p).Snapshot()

	if err := saver.Save(ctx, snap); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := saver.Save(ctx, snap); !errors.Is(err, transport.ErrUnexpectedStatus) {
		t.Fatalf("expected the second save to be rejected, got %v", err)
	}
}

// quietHost satisfies session.Host without a screen.
type quietHost struct {
	mu     sync.Mutex
	shown  []string
	target string
	warned bool
	label  string
}

func (h *quietHost) ShowTime(s string) {
	h.mu.Lock()
	h.shown = append(h.shown, s)
	h.mu.Unlock()
}
func (h *quietHost) ShowWarning() { h.warned = true }
func (h *quietHost) ShowAnsweredCount(int) {}
func (h *quietHost) DisableSubmit(label string) { h.label = label }
func (h *quietHost) Confirm(context.Context, string) bool { return true }
func (h *quietHost) SetUnsavedWarning(bool) {}
func (h *quietHost) Navigate(target string) { h.target = target }

func TestSessionAutoSubmitsAgainstStub(t *testing.T) {
	srv := newStub(t, 3*time.Second, 0)
	c := newClient()

	p := c.load(t, srv.URL+"/exam")
	f := form.New(p)
	host := &quietHost{}
	ctrl := session.NewController(host, f,
		transport.NewHTTPSaver(c.http, p.SaveURL, "run"),
		transport.NewFormSubmitter(c.http, f.Action(), f.Method()),
		session.Options{
			Remaining:        p.Remaining,
			TickInterval:     20 * time.Millisecond,
			AutosaveInterval: 30 * time.Millisecond,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q := p.Questions[0]
	go func() { _ = ctrl.ChangeAnswer(ctx, q.ID, q.Options[0].Key) }()

	result, err := ctrl.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	ctrl.WaitSaves()

	if !result.Auto || result.Phase != session.PhaseSubmitted {
		t.Fatalf("expected an automatic submission, got %+v", result)
	}
	if !strings.HasPrefix(result.Target, srv.URL+"/result/") || host.target != result.Target {
		t.Fatalf("expected navigation to the result page, got %q / %q", result.Target, host.target)
	}
	if host.label != session.AutoSubmitLabel || !host.warned {
		t.Fatalf("expected warning and auto-submit label, got warned=%v label=%q", host.warned, host.label)
	}
	if last := host.shown[len(host.shown)-1]; last != "00:00" {
		t.Fatalf("expected the timer to end on 00:00, got %s", last)
	}
}

func TestSubmitRejectsForeignExam(t *testing.T) {
	srv := newStub(t, 20*time.Minute, 0)
	c := newClient()

	p := c.load(t, srv.URL+"/exam")
	resp, err := c.http.PostForm(p.Form.Action, map[string][]string{"exam_id": {"other"}, "q_1": {"a"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Code   string            `json:"code"`
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "VALIDATION_ERROR" || body.Error.Fields["exam_id"] == "" {
		t.Fatalf("unexpected error body: %+v", body.Error)
	}

	// The attempt is still open.
	c.load(t, srv.URL+"/exam")
}

func TestResultRejectsMalformedID(t *testing.T) {
	srv := newStub(t, 20*time.Minute, 0)

	resp, err := http.Get(srv.URL + "/result/not-a-uuid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
