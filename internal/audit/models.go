package audit

import "time"

// Event is one immutable record of a request against the decoy surface. The
// store assigns ID; everything else is captured at the call site. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        int64     `json:"id"`
	TS        time.Time `json:"ts"`
	SessionID string    `json:"session_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Action    string    `json:"action"`
	Payload   string    `json:"payload"`
	Referer   string    `json:"referer"`
	Note      string    `json:"note"`
}

// Session identifies one decoy visitor. FirstIP and UserAgent are frozen at
// first contact even if the visitor later changes either.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	FirstIP   string    `json:"first_ip"`
	UserAgent string    `json:"user_agent"`
}

// SessionSummary is the roll-up row served to the real console.
type SessionSummary struct {
	Session
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	EventCount  int64      `json:"event_count"`
}
