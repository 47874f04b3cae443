package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/middleware"
	"github.com/stemsi/exstem-client/internal/service"
	ws "github.com/stemsi/exstem-client/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles WebSocket autosave streams.
type WSHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AutosaveStream godoc
// WS /ws/exam/save
// Receives autosave snapshots for the caller's attempt, one per message.
func (h *WSHandler) AutosaveStream(c *gin.Context) {
	a := middleware.GetAttempt(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("attempt_id", a.ID).Logger()
	wsLog.Info().Msg("Autosave stream connected")

	for {
		var msg ws.AutosaveRequest
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(c, conn, wsLog, a.ID, &msg)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, attemptID string, msg *ws.AutosaveRequest) {
	result, err := h.attempts.Save(c.Request.Context(), attemptID, msg.Seq, msg.RunID, msg.Fields)
	if errors.Is(err, service.ErrAttemptFinished) {
		ws.WriteError(conn, "exam already finished")
		return
	}
	if err != nil {
		wsLog.Error().Err(err).Uint64("seq", msg.Seq).Msg("Autosave error")
		ws.WriteError(conn, "save failed")
		return
	}

	status := "saved"
	if result.Stale {
		status = "stale"
	}
	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: status, Seq: msg.Seq})
}
