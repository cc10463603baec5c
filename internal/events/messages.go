package events

import "encoding/json"

// Kind is the discriminant carried in every payload's "type" field.
type Kind string

// Inbound, server -> client.
const (
	KindRoomInfo     Kind = "ROOM_INFO"
	KindParticipants Kind = "PARTICIPANTS"
	KindJoin         Kind = "JOIN"
	KindLeave        Kind = "LEAVE"
	KindReady        Kind = "READY"
	KindHostChange   Kind = "HOST_CHANGE"
	KindChat         Kind = "CHAT"
	KindChannelUsers Kind = "CHANNEL_USERS"

	KindWaiting     Kind = "WAITING"
	KindRoundInfo   Kind = "ROUND_INFO"
	KindRoundOpen   Kind = "ROUND_OPEN"
	KindQuizOpen    Kind = "QUIZ_OPEN"
	KindGameResult  Kind = "GAME_RESULT"
	KindScoreUpdate Kind = "SCORE_UPDATE"
	KindGameEnd     Kind = "GAME_END"
	KindRefused     Kind = "REFUSED"
	KindGameState   Kind = "GAME_STATE"

	KindHint      Kind = "HINT"
	KindBoardMove Kind = "BOARD_MOVE"
	KindDice      Kind = "DICE"
	KindBubble    Kind = "BUBBLE"
)

// Outbound, client -> server.
const (
	KindStartGame Kind = "START_GAME"
	KindRollDice  Kind = "ROLL_DICE"
	KindLeaveRoom Kind = "LEAVE_ROOM"
)

// Envelope wraps every frame. Request may be absent, in which case the
// event fields sit inline next to "type".
type Envelope struct {
	Type    Kind            `json:"type"`
	Request json.RawMessage `json:"request,omitempty"`
}

// ──────────────────────────── Inbound bodies ─────────────────────────────

type RoomInfoBody struct {
	Title       string   `json:"title"`
	Format      string   `json:"format"` // BOARD | GENERAL
	Modes       []string `json:"modes"`
	Years       []int    `json:"years"`
	HasPassword bool     `json:"hasPassword"`
	Status      string   `json:"status"` // WAITING | IN_PROGRESS | ...
}

type ParticipantBody struct {
	Username  string `json:"username" validate:"required"`
	IsReady   bool   `json:"isReady"`
	IsHost    bool   `json:"isHost"`
	Character string `json:"character,omitempty"`
}

type ParticipantsBody struct {
	Participants []ParticipantBody `json:"participants"`
}

type UserBody struct {
	Username string `json:"username" validate:"required"`
}

type ReadyBody struct {
	Username string `json:"username" validate:"required"`
	IsReady  bool   `json:"isReady"`
}

type ChatBody struct {
	Username string `json:"username"`
	Message  string `json:"message" validate:"required"`
	SentAt   int64  `json:"sentAt,omitempty"`
}

type ChannelUsersBody struct {
	Users []string `json:"users"`
}

type RoundInfoBody struct {
	Mode  string `json:"mode"`
	Round int    `json:"round"`
}

type GameResultBody struct {
	Winner *string `json:"winner,omitempty"`
	Title  string  `json:"title"`
	Singer string  `json:"singer"`
	Score  int     `json:"score"`
}

type ScoreEntry struct {
	Username string `json:"username" validate:"required"`
	Score    int    `json:"score"`
}

// ScoreUpdateBody accepts a single entry, a batch, or both. Scores are
// absolute totals, never deltas.
type ScoreUpdateBody struct {
	Username string       `json:"username,omitempty" validate:"required_without=Scores"`
	Score    int          `json:"score,omitempty"`
	Scores   []ScoreEntry `json:"scores,omitempty" validate:"required_without=Username,dive"`
}

func (b ScoreUpdateBody) Entries() []ScoreEntry {
	out := make([]ScoreEntry, 0, len(b.Scores)+1)
	if b.Username != "" {
		out = append(out, ScoreEntry{Username: b.Username, Score: b.Score})
	}
	return append(out, b.Scores...)
}

type HintBody struct {
	Hint string `json:"hint"`
}

type BoardMoveBody struct {
	Username string `json:"username" validate:"required"`
	Position int    `json:"position"`
}

type DiceBody struct {
	Username string `json:"username" validate:"required"`
	Value    int    `json:"value"`
}

type BubbleBody struct {
	Trigger   string `json:"trigger"`
	Target    string `json:"target,omitempty"`
	EventType string `json:"eventType"`
}

// Empty is the body of lifecycle events that carry nothing.
type Empty struct{}

// ──────────────────────────── Outbound bodies ────────────────────────────

type ChatRequest struct {
	Message string `json:"message"`
}
