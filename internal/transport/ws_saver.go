package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/form"
	ws "github.com/stemsi/exstem-client/internal/websocket"
)

// WSSaver streams snapshots over one WebSocket connection. The connection
// is dialed on first use; after a write failure it is dropped and the next
// tick dials again. Acknowledgements are read and discarded.
type WSSaver struct {
	url    string
	runID  string
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSSaver creates a WebSocket saver sharing the page's cookie jar.
func NewWSSaver(wsURL, runID string, jar http.CookieJar, log zerolog.Logger) *WSSaver {
	dialer := *websocket.DefaultDialer
	dialer.Jar = jar
	return &WSSaver{
		url:    wsURL,
		runID:  runID,
		dialer: &dialer,
		log:    log.With().Str("component", "ws_saver").Logger(),
	}
}

// WebSocketURL derives the WebSocket save endpoint from an HTTP save URL:
// same host, ws/wss scheme, path prefixed with /ws.
func WebSocketURL(saveURL string) (string, error) {
	u, err := url.Parse(saveURL)
	if err != nil {
		return "", fmt.Errorf("parse save URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported save URL scheme %q", u.Scheme)
	}
	u.Path = "/ws" + "/" + strings.TrimPrefix(u.Path, "/")
	return u.String(), nil
}

// Save writes one snapshot as an autosave action.
func (s *WSSaver) Save(ctx context.Context, snap form.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("dial autosave socket: %w", statusError(resp))
			}
			return fmt.Errorf("dial autosave socket: %w", err)
		}
		s.conn = conn
		go s.discardReads(conn)
	}

	msg := ws.AutosaveRequest{
		Action: ws.ActionAutosave,
		Seq:    snap.Seq,
		RunID:  s.runID,
		Fields: snap.Map(),
	}
	if err := ws.WriteTyped(s.conn, msg); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Close shuts the connection down, if any.
func (s *WSSaver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "page closed"))
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *WSSaver) discardReads(conn *websocket.Conn) {
	for {
		var resp ws.AutosaveResponse
		if err := ws.ReadJSON(conn, &resp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("Autosave socket closed")
			}
			return
		}
		s.log.Trace().Str("event", string(resp.Event)).Uint64("seq", resp.Seq).Msg("Autosave acknowledged")
	}
}
