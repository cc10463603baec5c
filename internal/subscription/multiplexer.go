package subscription

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"quizsync/internal/domain"
	"quizsync/internal/transport"
)

// Multiplexer keeps exactly the topic set of the current scope subscribed
// on the one live session, at most one subscription per topic.
type Multiplexer struct {
	topics Topics
	sink   domain.FrameSink
	scopes domain.ScopeListener

	mu      sync.Mutex
	sess    transport.Session
	scope   domain.Scope
	epoch   uint64
	applied bool
	subs    map[string]transport.Subscription // topic ➜ handle
}

var _ transport.Listener = (*Multiplexer)(nil)

func New(topics Topics, sink domain.FrameSink, scopes domain.ScopeListener) *Multiplexer {
	return &Multiplexer{
		topics: topics.withDefaults(),
		sink:   sink,
		scopes: scopes,
		subs:   make(map[string]transport.Subscription),
	}
}

// SetScope replaces the subscribed topic set and returns the epoch frames
// of the new scope are tagged with. Asking for the scope that is already
// in place changes nothing.
func (m *Multiplexer) SetScope(scope domain.Scope) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scope == m.scope {
		if !m.applied {
			m.applyLocked()
		}
		return m.epoch
	}

	m.unsubscribeAllLocked()
	m.scope = scope
	m.epoch++
	if m.scopes != nil {
		m.scopes.ScopeChanged(scope, m.epoch)
	}
	zap.L().Info("mux.scope", zap.String("scope", scope.Key()), zap.Uint64("epoch", m.epoch))

	m.applyLocked()
	return m.epoch
}

func (m *Multiplexer) Scope() domain.Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scope
}

func (m *Multiplexer) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Active returns the subscribed topics, sorted.
func (m *Multiplexer) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.subs))
	for t := range m.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// OnStatus follows the connection: re-apply on connect, unsubscribe on an
// orderly disconnect, forget dead handles when the session was lost.
func (m *Multiplexer) OnStatus(st transport.Status, sess transport.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch st {
	case transport.StatusConnected:
		m.sess = sess
		m.subs = make(map[string]transport.Subscription)
		m.applied = false
		m.applyLocked()
	case transport.StatusDisconnected:
		m.unsubscribeAllLocked()
		m.sess = nil
	case transport.StatusConnecting:
		if len(m.subs) > 0 {
			zap.L().Debug("mux.drop_handles", zap.Int("count", len(m.subs)))
		}
		m.subs = make(map[string]transport.Subscription)
		m.sess = nil
		m.applied = false
	}
}

func (m *Multiplexer) applyLocked() {
	if m.sess == nil {
		return
	}
	ok := true
	for _, topic := range m.topics.For(m.scope) {
		if _, dup := m.subs[topic]; dup {
			continue
		}
		sub, err := m.sess.Subscribe(topic, m.handler(topic, m.epoch))
		if err != nil {
			zap.L().Warn("mux.subscribe", zap.String("topic", topic), zap.Error(err))
			ok = false
			continue
		}
		m.subs[topic] = sub
		zap.L().Debug("mux.subscribe", zap.String("topic", topic), zap.Uint64("epoch", m.epoch))
	}
	m.applied = ok
}

func (m *Multiplexer) unsubscribeAllLocked() {
	for topic, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil {
			zap.L().Warn("mux.unsubscribe", zap.String("topic", topic), zap.Error(err))
		}
	}
	m.subs = make(map[string]transport.Subscription)
	m.applied = false
}

func (m *Multiplexer) handler(topic string, epoch uint64) func([]byte) {
	return func(body []byte) {
		m.sink.Deliver(domain.Frame{Topic: topic, Body: body, Epoch: epoch})
	}
}
