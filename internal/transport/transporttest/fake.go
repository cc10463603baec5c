// Package transporttest provides in-memory sessions and dialers for tests of
// code layered on transport.Connection.
package transporttest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"quizsync/internal/transport"
)

var ErrClosed = errors.New("session closed")

type Sent struct {
	Destination string
	Body        []byte
}

type Session struct {
	mu          sync.Mutex
	subs        map[string]func([]byte)
	subscribed  []string
	unsubscribe []string
	sent        []Sent

	done chan struct{}
	once sync.Once
}

func NewSession() *Session {
	return &Session{subs: make(map[string]func([]byte)), done: make(chan struct{})}
}

func (s *Session) Subscribe(topic string, h func(body []byte)) (transport.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked() {
		return nil, ErrClosed
	}
	s.subs[topic] = h
	s.subscribed = append(s.subscribed, topic)
	return &subscription{s: s, topic: topic}, nil
}

func (s *Session) Send(destination string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked() {
		return ErrClosed
	}
	s.sent = append(s.sent, Sent{Destination: destination, Body: append([]byte(nil), body...)})
	return nil
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) LastActivity() time.Time { return time.Time{} }

func (s *Session) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Drop simulates the peer going away.
func (s *Session) Drop() { _ = s.Close() }

func (s *Session) closedLocked() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Topics returns the active subscriptions, sorted.
func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for t := range s.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SubscribeCount reports how many SUBSCRIBEs were issued, active or not.
func (s *Session) SubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribed)
}

func (s *Session) Unsubscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unsubscribe...)
}

func (s *Session) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

// Push delivers body to the subscriber of topic, if any.
func (s *Session) Push(topic string, body []byte) bool {
	s.mu.Lock()
	h := s.subs[topic]
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h(body)
	return true
}

type subscription struct {
	s     *Session
	topic string
}

func (u *subscription) Unsubscribe() error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	delete(u.s.subs, u.topic)
	u.s.unsubscribe = append(u.s.unsubscribe, u.topic)
	return nil
}

// Dialer hands out a fresh Session per Dial. Hold blocks dials until
// Release; FailNext makes the next n dials fail.
type Dialer struct {
	mu       sync.Mutex
	dials    int
	gate     chan struct{}
	failNext int
	sessions []*Session
}

func (d *Dialer) Dial(ctx context.Context) (transport.Session, error) {
	d.mu.Lock()
	d.dials++
	gate := d.gate
	fail := d.failNext > 0
	if fail {
		d.failNext--
	}
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("dial refused")
	}

	s := NewSession()
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

func (d *Dialer) Hold() {
	d.mu.Lock()
	d.gate = make(chan struct{})
	d.mu.Unlock()
}

func (d *Dialer) Release() {
	d.mu.Lock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
	d.mu.Unlock()
}

func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	d.failNext = n
	d.mu.Unlock()
}

func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *Dialer) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Last returns the most recently created session, or nil.
func (d *Dialer) Last() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}
