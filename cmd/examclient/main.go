package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/form"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/page"
	"github.com/stemsi/exstem-client/internal/session"
	"github.com/stemsi/exstem-client/internal/transport"
	"github.com/stemsi/exstem-client/internal/tui"
	"github.com/stemsi/exstem-client/internal/validator"
	"golang.org/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()
	if fields := validator.Struct(cfg); fields != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", validator.FieldError(fields))
		return 2
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log, logCloser, err := logger.SetupFile(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logCloser.Close()

	log.Info().
		Str("page", cfg.ExamPageURL).
		Str("transport", cfg.AutosaveTransport).
		Msg("Starting ExStem exam client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Load Exam Page ────────────────────────────────────────────────
	jar := transport.NewJar()
	client := transport.NewClient(jar, cfg.HTTPTimeout)

	examPage, err := page.NewLoader(client, log).Load(ctx, cfg.ExamPageURL)
	if errors.Is(err, page.ErrExamFinished) {
		fmt.Println("This exam is already finished.")
		return 0
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load exam page")
		fmt.Fprintf(os.Stderr, "cannot load exam: %v\n", err)
		return 1
	}

	// ─── Wire Session ──────────────────────────────────────────────────
	answers := form.New(examPage)
	runID := uuid.NewString()

	saver, closeSaver, err := newSaver(cfg, examPage, runID, jar, client, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to set up autosave")
		return 1
	}
	submitter := transport.NewFormSubmitter(client, answers.Action(), answers.Method())

	screen := tui.New(os.Stdout, answers)
	ctrl := session.NewController(screen, answers, saver, submitter, session.Options{
		Remaining:        examPage.Remaining,
		TickInterval:     cfg.TickInterval,
		AutosaveInterval: cfg.AutosaveInterval,
		WarningThreshold: cfg.WarningThreshold,
		Logger:           log,
	})

	// ─── Raw Terminal ──────────────────────────────────────────────────
	fd := int(os.Stdin.Fd())
	restore := func() {}
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			log.Error().Err(err).Msg("Failed to switch terminal to raw mode")
			return 1
		}
		restore = func() { _ = term.Restore(fd, state) }
	}

	// ─── Run ───────────────────────────────────────────────────────────
	sessCtx, leave := context.WithCancel(ctx)
	defer leave()

	go func() {
		err := screen.Run(sessCtx, os.Stdin, ctrl)
		switch {
		case errors.Is(err, io.EOF):
			// No keyboard; the countdown still submits the exam.
			log.Debug().Msg("Input closed")
			return
		case errors.Is(err, tui.ErrLeft):
		default:
			log.Error().Err(err).Msg("Input loop failed")
		}
		leave()
	}()

	result, err := ctrl.Run(sessCtx)

	// ─── Shutdown ──────────────────────────────────────────────────────
	// Saves in flight are not cancelled by leaving the page; give them a
	// moment to land before the process goes away.
	waitSaves(ctrl, 5*time.Second)
	if err := closeSaver(); err != nil {
		log.Debug().Err(err).Msg("Autosave connection close failed")
	}
	restore()
	fmt.Println()

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("Left the exam page. Your autosaved answers are kept until time runs out.")
		return 0
	case err != nil:
		log.Error().Err(err).Str("phase", result.Phase.String()).Msg("Exam submission failed")
		fmt.Fprintf(os.Stderr, "submission failed: %v\n", err)
		return 1
	}

	how := "submitted"
	if result.Auto {
		how = "submitted automatically when time ran out"
	}
	fmt.Printf("Exam %s. Result: %s\n", how, result.Target)
	log.Info().Bool("auto", result.Auto).Str("target", result.Target).Msg("Exam finished")
	return 0
}

// newSaver picks the autosave transport. The returned close func releases
// any connection the saver holds.
func newSaver(
	cfg *config.Config,
	examPage *model.ExamPage,
	runID string,
	jar http.CookieJar,
	client *http.Client,
	log zerolog.Logger,
) (session.Saver, func() error, error) {
	if cfg.AutosaveTransport != config.TransportWS {
		return transport.NewHTTPSaver(client, examPage.SaveURL, runID), func() error { return nil }, nil
	}

	wsURL := cfg.AutosaveWSURL
	if wsURL == "" {
		var err error
		if wsURL, err = transport.WebSocketURL(examPage.SaveURL); err != nil {
			return nil, nil, err
		}
	}
	saver := transport.NewWSSaver(wsURL, runID, jar, log)
	return saver, saver.Close, nil
}

func waitSaves(ctrl *session.Controller, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		ctrl.WaitSaves()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
