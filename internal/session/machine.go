package session

import (
	"time"

	"go.uber.org/zap"

	"quizsync/internal/domain"
	"quizsync/internal/events"
)

type Effect interface{ isEffect() }

// Redirect asks the owner to move out of a room that refused us.
type Redirect struct {
	From domain.Scope
	To   domain.Scope
}

// GameFinished carries the final scoreboard of one game.
type GameFinished struct {
	Scope      domain.Scope
	GameSeq    int
	Scores     ScoreBoard
	FinishedAt time.Time
}

func (Redirect) isEffect()     {}
func (GameFinished) isEffect() {}

// machine is the router's state: the session state plus the side effects a
// dispatch produced, which the store loop performs afterwards.
type machine struct {
	State

	chatLimit int
	now       func() time.Time

	// games counts started games per scope key for the life of the store,
	// so re-entering a room never reuses a game number.
	games map[string]int

	pending   []Effect
	startRoll bool
}

// enter moves the lifecycle to next and runs boundary effects. renew forces
// the effects even when the phase is unchanged (a new round while already
// in ROUND_INFO).
func (m *machine) enter(next Phase, renew bool) bool {
	cur := m.Phase
	if cur.Terminal() {
		zap.L().Debug("lifecycle.ignored", zap.Stringer("phase", cur), zap.Stringer("next", next))
		return false
	}
	if cur == next && !renew {
		return true
	}
	if cur == PhaseEnded && !CanTransition(cur, next) {
		// late frames of the finished game; only a restart leaves Ended
		zap.L().Debug("lifecycle.ignored", zap.Stringer("phase", cur), zap.Stringer("next", next))
		return false
	}
	if !CanTransition(cur, next) {
		zap.L().Warn("lifecycle.unexpected", zap.Stringer("from", cur), zap.Stringer("to", next))
	}
	m.Phase = next

	switch next {
	case PhaseRoundInfo:
		if cur == PhaseWaiting || cur == PhaseEnded {
			m.Scores = ResetScores()
			m.Board = ResetBoard()
			m.GameSeq = m.nextGame()
		}
		m.Result = ResetWinner()
		m.Overlay = ResetOverlay()
		m.Animation = Animation{Rolling: true, Gen: m.Animation.Gen + 1}
		m.startRoll = true
	case PhaseRoundOpen:
		m.Animation.Rolling = false
	case PhaseEnded:
		m.Animation.Rolling = false
		m.pending = append(m.pending, GameFinished{
			Scope:      m.Scope,
			GameSeq:    m.GameSeq,
			Scores:     m.Scores.clone(),
			FinishedAt: m.now(),
		})
	case PhaseRefused:
		from := m.Scope
		m.clearRoom()
		m.pending = append(m.pending, Redirect{From: from, To: lobbyOf(from)})
	}
	return true
}

func (m *machine) clearRoom() {
	fresh := NewState(m.Scope)
	fresh.Phase = m.Phase
	fresh.Animation = Animation{Gen: m.Animation.Gen}
	fresh.GameSeq = m.GameSeq
	m.State = fresh
}

// reset switches to the empty state of scope, keeping the animation
// generation and the scope's game count.
func (m *machine) reset(scope domain.Scope) {
	gen := m.Animation.Gen
	m.State = NewState(scope)
	m.Animation.Gen = gen
	m.GameSeq = m.games[scope.Key()]
	m.pending, m.startRoll = nil, false
}

func (m *machine) nextGame() int {
	if m.games == nil {
		m.games = make(map[string]int)
	}
	key := m.Scope.Key()
	m.games[key]++
	return m.games[key]
}

func (b ScoreBoard) clone() ScoreBoard {
	out := make(ScoreBoard, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// lobbyOf is where a refused room sends us: its channel, or nowhere.
func lobbyOf(s domain.Scope) domain.Scope {
	if s.Channel != "" {
		return domain.ChannelScope(s.Channel)
	}
	return domain.Scope{}
}

// gameStateBody is a resync. A frame without a state is dropped rather than
// read as the zero phase.
type gameStateBody struct {
	State *Phase `json:"state" validate:"required"`
}

func newRouter() *events.Router[machine] {
	r := events.NewRouter[machine]()

	// ─────────────────────────── room & roster ───────────────────────────
	events.Register(r, events.KindRoomInfo, func(m *machine, b events.RoomInfoBody) {
		m.Room = RoomInfo{
			Title:       b.Title,
			Format:      b.Format,
			Modes:       b.Modes,
			Years:       b.Years,
			HasPassword: b.HasPassword,
			Status:      b.Status,
		}
	})
	events.Register(r, events.KindParticipants, func(m *machine, b events.ParticipantsBody) {
		ps := make([]Participant, 0, len(b.Participants))
		for _, p := range b.Participants {
			ps = append(ps, Participant(p))
		}
		m.Roster = ReplaceRoster(ps)
	})
	events.Register(r, events.KindJoin, func(m *machine, b events.ParticipantBody) {
		m.Roster = AddParticipant(m.Roster, Participant(b))
		if b.IsHost {
			m.Roster = MigrateHost(m.Roster, b.Username)
		}
	})
	events.Register(r, events.KindLeave, func(m *machine, b events.UserBody) {
		m.Roster = RemoveParticipant(m.Roster, b.Username)
	})
	events.Register(r, events.KindReady, func(m *machine, b events.ReadyBody) {
		m.Roster = SetReady(m.Roster, b.Username, b.IsReady)
	})
	events.Register(r, events.KindHostChange, func(m *machine, b events.UserBody) {
		m.Roster = MigrateHost(m.Roster, b.Username)
	})
	events.Register(r, events.KindChat, func(m *machine, b events.ChatBody) {
		m.Chat = AppendChat(m.Chat, ChatMessage(b), m.chatLimit)
	})
	events.Register(r, events.KindChannelUsers, func(m *machine, b events.ChannelUsersBody) {
		m.Channel = append([]string(nil), b.Users...)
	})

	// ───────────────────────────── lifecycle ─────────────────────────────
	events.Register(r, events.KindWaiting, func(m *machine, _ events.Empty) {
		m.enter(PhaseWaiting, false)
	})
	events.Register(r, events.KindRoundInfo, func(m *machine, b events.RoundInfoBody) {
		next := RoundInfo{Mode: b.Mode, Round: b.Round}
		renew := m.Phase == PhaseRoundInfo && m.Round != next
		if m.enter(PhaseRoundInfo, renew) {
			m.Round = next
		}
	})
	events.Register(r, events.KindRoundOpen, func(m *machine, _ events.Empty) {
		m.enter(PhaseRoundOpen, false)
	})
	events.Register(r, events.KindQuizOpen, func(m *machine, b events.HintBody) {
		if m.enter(PhaseQuizOpen, false) && b.Hint != "" {
			m.Overlay.Hint = b.Hint
		}
	})
	events.Register(r, events.KindGameResult, func(m *machine, b events.GameResultBody) {
		if !m.enter(PhaseGameResult, false) {
			return
		}
		res := &RoundResult{Title: b.Title, Singer: b.Singer, Score: b.Score}
		if b.Winner != nil {
			res.Winner = *b.Winner
		}
		m.Result = res
	})
	events.Register(r, events.KindScoreUpdate, func(m *machine, b events.ScoreUpdateBody) {
		// totals arriving after GAME_END still land; the phase stays Ended
		if !m.enter(PhaseScoreUpdate, false) && m.Phase != PhaseEnded {
			return
		}
		for _, e := range b.Entries() {
			m.Scores = ApplyScore(m.Scores, e.Username, e.Score)
		}
	})
	events.Register(r, events.KindGameEnd, func(m *machine, _ events.Empty) {
		m.enter(PhaseEnded, false)
	})
	events.Register(r, events.KindRefused, func(m *machine, _ events.Empty) {
		m.enter(PhaseRefused, false)
	})
	events.Register(r, events.KindGameState, func(m *machine, b gameStateBody) {
		m.enter(*b.State, false)
	})

	// ────────────────────────── board & overlay ──────────────────────────
	events.Register(r, events.KindHint, func(m *machine, b events.HintBody) {
		m.Overlay.Hint = b.Hint
	})
	events.Register(r, events.KindBoardMove, func(m *machine, b events.BoardMoveBody) {
		m.Board = ApplyMove(m.Board, b.Username, b.Position)
	})
	events.Register(r, events.KindDice, func(m *machine, b events.DiceBody) {
		m.Overlay.Dice = &DiceRoll{Username: b.Username, Value: b.Value}
	})
	events.Register(r, events.KindBubble, func(m *machine, b events.BubbleBody) {
		m.Overlay.Bubble = &Bubble{Trigger: b.Trigger, Target: b.Target, EventType: b.EventType}
	})

	r.InferKind(kindForTopic)
	return r
}
