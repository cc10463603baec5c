package domain

type ScopeKind string

const (
	ScopeNone     ScopeKind = ""
	ScopeChannel  ScopeKind = "channel"
	ScopeGameRoom ScopeKind = "game-room"
)

// Scope is the navigation context that decides which topics are subscribed.
// Channel is carried for game rooms too, outbound room destinations need it.
type Scope struct {
	Kind    ScopeKind `json:"kind"`
	Channel string    `json:"channel,omitempty"`
	Room    string    `json:"room,omitempty"`
}

func ChannelScope(channelID string) Scope {
	return Scope{Kind: ScopeChannel, Channel: channelID}
}

func RoomScope(channelID, roomID string) Scope {
	return Scope{Kind: ScopeGameRoom, Channel: channelID, Room: roomID}
}

func (s Scope) IsNone() bool { return s.Kind == ScopeNone }

// Key is stable per scope: "channel:2", "game-room:7", "idle".
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeChannel:
		return string(s.Kind) + ":" + s.Channel
	case ScopeGameRoom:
		return string(s.Kind) + ":" + s.Room
	default:
		return "idle"
	}
}

// Frame is one inbound message body, tagged with the multiplexer epoch of
// the scope its subscription was created under.
type Frame struct {
	Topic string
	Body  []byte
	Epoch uint64
}

// FrameSink receives inbound frames from subscription callbacks.
type FrameSink interface {
	Deliver(f Frame)
}

// ScopeListener is told about every scope change before the new topics are
// subscribed.
type ScopeListener interface {
	ScopeChanged(scope Scope, epoch uint64)
}
