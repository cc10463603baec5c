package session

import (
	"maps"
	"slices"

	"quizsync/internal/domain"
)

type Participant struct {
	Username  string `json:"username"`
	IsReady   bool   `json:"isReady"`
	IsHost    bool   `json:"isHost"`
	Character string `json:"character,omitempty"`
}

// Roster is kept in first-seen order.
type Roster []Participant

type RoomInfo struct {
	Title       string   `json:"title"`
	Format      string   `json:"format"`
	Modes       []string `json:"modes"`
	Years       []int    `json:"years"`
	HasPassword bool     `json:"hasPassword"`
	Status      string   `json:"status"`
}

type RoundInfo struct {
	Mode  string `json:"mode"`
	Round int    `json:"round"`
}

type RoundResult struct {
	Winner string `json:"winner,omitempty"`
	Title  string `json:"title"`
	Singer string `json:"singer"`
	Score  int    `json:"score"`
}

type ScoreBoard map[string]int

type BoardPosition map[string]int

type Bubble struct {
	Trigger   string `json:"trigger"`
	Target    string `json:"target,omitempty"`
	EventType string `json:"eventType"`
}

type DiceRoll struct {
	Username string `json:"username"`
	Value    int    `json:"value"`
}

// Overlay holds single-slot transient events. A new occurrence replaces the
// slot; nothing is merged.
type Overlay struct {
	Bubble *Bubble   `json:"bubble,omitempty"`
	Dice   *DiceRoll `json:"dice,omitempty"`
	Hint   string    `json:"hint,omitempty"`
}

type OverlayKind string

const (
	OverlayBubble OverlayKind = "bubble"
	OverlayDice   OverlayKind = "dice"
	OverlayHint   OverlayKind = "hint"
)

type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	SentAt   int64  `json:"sentAt,omitempty"`
}

// Animation is local cosmetic state. It follows Phase but never drives it.
type Animation struct {
	Rolling bool   `json:"rolling"`
	Gen     uint64 `json:"-"`
}

type State struct {
	Scope     domain.Scope  `json:"scope"`
	Channel   []string      `json:"channelUsers"`
	Room      RoomInfo      `json:"room"`
	Roster    Roster        `json:"roster"`
	Round     RoundInfo     `json:"round"`
	Result    *RoundResult  `json:"result,omitempty"`
	Scores    ScoreBoard    `json:"scores"`
	Board     BoardPosition `json:"board"`
	Overlay   Overlay       `json:"overlay"`
	Chat      []ChatMessage `json:"chat"`
	Phase     Phase         `json:"phase"`
	Animation Animation     `json:"animation"`
	GameSeq   int           `json:"gameSeq"`
}

func NewState(scope domain.Scope) State {
	return State{
		Scope:  scope,
		Roster: Roster{},
		Scores: ScoreBoard{},
		Board:  BoardPosition{},
		Phase:  PhaseWaiting,
	}
}

// Clone deep-copies everything a consumer could mutate.
func (s State) Clone() State {
	out := s
	out.Channel = slices.Clone(s.Channel)
	out.Room.Modes = slices.Clone(s.Room.Modes)
	out.Room.Years = slices.Clone(s.Room.Years)
	out.Roster = slices.Clone(s.Roster)
	out.Scores = maps.Clone(s.Scores)
	out.Board = maps.Clone(s.Board)
	out.Chat = slices.Clone(s.Chat)
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.Overlay.Bubble != nil {
		b := *s.Overlay.Bubble
		out.Overlay.Bubble = &b
	}
	if s.Overlay.Dice != nil {
		d := *s.Overlay.Dice
		out.Overlay.Dice = &d
	}
	return out
}

// Host returns the current host, if any.
func (r Roster) Host() (Participant, bool) {
	for _, p := range r {
		if p.IsHost {
			return p, true
		}
	}
	return Participant{}, false
}

func (r Roster) index(username string) int {
	return slices.IndexFunc(r, func(p Participant) bool { return p.Username == username })
}
