package transport

import (
	"context"
	"fmt"
	"time"
)

// Status of the single underlying connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = StatusDisconnected
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Session is one live pub/sub connection. It ends when Done is closed.
type Session interface {
	// Subscribe registers h for every message on topic. h runs on a
	// transport goroutine and must not block for long.
	Subscribe(topic string, h func(body []byte)) (Subscription, error)
	Send(destination string, body []byte) error
	Done() <-chan struct{}
	LastActivity() time.Time
	Close() error
}

type Subscription interface {
	Unsubscribe() error
}

type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Listener observes status transitions. sess is the live session for
// StatusConnected and nil otherwise. For StatusDisconnected the previous
// session is still open while the callback runs.
type Listener interface {
	OnStatus(st Status, sess Session)
}

type ListenerFunc func(st Status, sess Session)

func (f ListenerFunc) OnStatus(st Status, sess Session) { f(st, sess) }
