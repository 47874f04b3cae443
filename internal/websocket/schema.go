package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionPing     Action = "ping"
)

// AutosaveRequest carries a full form snapshot, the same fields the HTTP
// save endpoint receives as multipart.
type AutosaveRequest struct {
	Action Action            `json:"action"`
	Seq    uint64            `json:"seq"`
	RunID  string            `json:"run_id"`
	Fields map[string]string `json:"fields"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventPong    Event = "pong"
)

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	Seq    uint64 `json:"seq"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
