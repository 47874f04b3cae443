// Package transport carries exam data between the client and the exam
// server: autosave over HTTP or WebSocket, and the native form submission.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Headers attached to every autosave so the server can order them.
const (
	HeaderAutosaveSeq = "X-Autosave-Seq"
	HeaderClientRun   = "X-Client-Run"
	HeaderRequestID   = "X-Request-ID"
)

// ErrUnexpectedStatus wraps non-2xx answers from the exam server.
var ErrUnexpectedStatus = errors.New("unexpected status")

// NewJar returns the cookie jar shared by everything talking to one exam
// server, so autosaves and submission ride on the page's session.
func NewJar() http.CookieJar {
	jar, _ := cookiejar.New(nil) // never fails with nil options
	return jar
}

// NewClient builds an HTTP client on a shared jar. A zero timeout means none.
func NewClient(jar http.CookieJar, timeout time.Duration) *http.Client {
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}

func statusError(resp *http.Response) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
}
