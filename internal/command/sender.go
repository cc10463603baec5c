package command

import (
	"strings"

	"go.uber.org/zap"

	"quizsync/internal/domain"
	"quizsync/internal/events"
	"quizsync/internal/transport"
)

// SessionSource yields the live session, or nil while not connected.
type SessionSource interface {
	Session() transport.Session
}

type ScopeSource interface {
	Scope() domain.Scope
}

// Sender is fire-and-forget: frames are written to the live session or
// dropped. Nothing is queued and nothing is retried.
type Sender struct {
	conn      SessionSource
	scope     ScopeSource
	appPrefix string
}

func New(conn SessionSource, scope ScopeSource, appPrefix string) *Sender {
	if appPrefix == "" {
		appPrefix = "/app"
	}
	return &Sender{
		conn:      conn,
		scope:     scope,
		appPrefix: strings.TrimSuffix(appPrefix, "/"),
	}
}

// Send reports whether the frame was handed to the transport. Delivery is
// only observable through later inbound events.
func (s *Sender) Send(destination string, payload []byte) bool {
	sess := s.conn.Session()
	if sess == nil {
		zap.L().Debug("command.dropped", zap.String("destination", destination), zap.String("reason", "not_connected"))
		return false
	}
	if err := sess.Send(destination, payload); err != nil {
		zap.L().Warn("command.send", zap.String("destination", destination), zap.Error(err))
		return false
	}
	return true
}

func (s *Sender) StartGame() bool { return s.room("start", events.KindStartGame, nil) }

func (s *Sender) Ready() bool { return s.room("ready", events.KindReady, nil) }

func (s *Sender) Chat(message string) bool {
	return s.room("chat", events.KindChat, events.ChatRequest{Message: message})
}

func (s *Sender) RollDice() bool { return s.room("dice", events.KindRollDice, nil) }

func (s *Sender) LeaveRoom() bool { return s.room("leave", events.KindLeaveRoom, nil) }

// RoomDestination is {app}/channel/{c}/room/{r}/{action}.
func (s *Sender) RoomDestination(scope domain.Scope, action string) string {
	return s.appPrefix + "/channel/" + scope.Channel + "/room/" + scope.Room + "/" + action
}

func (s *Sender) room(action string, kind events.Kind, request any) bool {
	scope := s.scope.Scope()
	if scope.Kind != domain.ScopeGameRoom {
		zap.L().Debug("command.dropped", zap.String("kind", string(kind)), zap.String("reason", "not_in_room"))
		return false
	}
	body, err := events.Encode(kind, request)
	if err != nil {
		zap.L().Warn("command.encode", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	return s.Send(s.RoomDestination(scope, action), body)
}
