package ws

import (
	"encoding/json"

	"quizsync/internal/domain"
	"quizsync/internal/services/gamesession"
	"quizsync/internal/session"
	"quizsync/internal/transport"
)

// View selects what a consumer receives.
type View string

const (
	ViewSnapshot  View = "snapshot"
	ViewLifecycle View = "lifecycle"
)

var views = []View{ViewSnapshot, ViewLifecycle}

func (v View) valid() bool { return v == ViewSnapshot || v == ViewLifecycle }

const (
	EventSnapshot  = "session/snapshot"
	EventLifecycle = "session/lifecycle"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "session/chat"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ──────────────────────────── Request / Response DTOs ─────────────────────────

// ChatRequest is the body for "session/chat".
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=500"`
}

// ClearOverlayRequest is the body for "session/clear_overlay".
type ClearOverlayRequest struct {
	Kind session.OverlayKind `json:"kind" validate:"required,oneof=bubble dice hint"`
}

type Empty struct{}

// AckBody tells whether the command reached the transport. It says nothing
// about the server accepting it.
type AckBody struct {
	Sent bool `json:"sent"`
}

type ErrorBody struct {
	Error string `json:"error"`
}

// LifecycleBody is the slim view for consumers that only follow the game
// flow.
type LifecycleBody struct {
	Status  transport.Status  `json:"status"`
	Scope   domain.Scope      `json:"scope"`
	Phase   session.Phase     `json:"phase"`
	Round   session.RoundInfo `json:"round"`
	Rolling bool              `json:"rolling"`
	GameSeq int               `json:"gameSeq"`
}

func lifecycleOf(s gamesession.Snapshot) LifecycleBody {
	return LifecycleBody{
		Status:  s.Status,
		Scope:   s.State.Scope,
		Phase:   s.State.Phase,
		Round:   s.State.Round,
		Rolling: s.State.Animation.Rolling,
		GameSeq: s.State.GameSeq,
	}
}

// frameFor renders snap for view.
func frameFor(view View, snap gamesession.Snapshot) ([]byte, error) {
	if view == ViewLifecycle {
		return json.Marshal(map[string]any{"event": EventLifecycle, "body": lifecycleOf(snap)})
	}
	return json.Marshal(map[string]any{"event": EventSnapshot, "body": snap})
}
