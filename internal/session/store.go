package session

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quizsync/internal/domain"
	"quizsync/internal/events"
)

type Options struct {
	// RollTimeout settles the round animation when ROUND_OPEN never comes.
	RollTimeout time.Duration
	ChatHistory int
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RollTimeout <= 0 {
		o.RollTimeout = 3 * time.Second
	}
	if o.ChatHistory <= 0 {
		o.ChatHistory = 100
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type frameMsg domain.Frame

type scopeMsg struct {
	scope domain.Scope
	epoch uint64
}

type clearOverlayMsg struct{ kind OverlayKind }

type settleMsg struct{ gen uint64 }

type snapshotMsg struct{ reply chan State }

type watchMsg struct {
	id uint64
	ch chan State
}

type unwatchMsg struct{ id uint64 }

// Store owns the session state. Everything that touches it runs on one
// goroutine fed by the inbox, so reducers never see concurrent writers.
type Store struct {
	opts   Options
	router *events.Router[machine]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	inbox   chan any
	effects chan Effect

	watchSeq atomic.Uint64
}

var (
	_ domain.FrameSink     = (*Store)(nil)
	_ domain.ScopeListener = (*Store)(nil)
)

func NewStore(ctx context.Context, opts Options) *Store {
	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		opts:    opts.withDefaults(),
		router:  newRouter(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		inbox:   make(chan any, 256),
		effects: make(chan Effect, 64),
	}
	go s.loop()
	return s
}

func (s *Store) enqueue(msg any) bool {
	select {
	case s.inbox <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Deliver is called from subscription callbacks.
func (s *Store) Deliver(f domain.Frame) { s.enqueue(frameMsg(f)) }

// ScopeChanged resets every slice to the empty state of scope. Frames
// tagged with an older epoch are dropped from now on.
func (s *Store) ScopeChanged(scope domain.Scope, epoch uint64) {
	s.enqueue(scopeMsg{scope: scope, epoch: epoch})
}

func (s *Store) ClearOverlay(kind OverlayKind) { s.enqueue(clearOverlayMsg{kind: kind}) }

// Snapshot returns a deep copy of the current state. After Close it returns
// the zero state.
func (s *Store) Snapshot() State {
	reply := make(chan State, 1)
	if !s.enqueue(snapshotMsg{reply: reply}) {
		return State{}
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return State{}
	}
}

// Watch returns a channel that always holds the latest state. Slow readers
// skip intermediate states. The channel is closed by cancel or Close.
func (s *Store) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	id := s.watchSeq.Add(1)
	if !s.enqueue(watchMsg{id: id, ch: ch}) {
		close(ch)
		return ch, func() {}
	}
	return ch, func() { s.enqueue(unwatchMsg{id: id}) }
}

// Effects delivers Redirect and GameFinished. It is closed by Close.
func (s *Store) Effects() <-chan Effect { return s.effects }

func (s *Store) Close() {
	s.cancel()
	<-s.done
}

func (s *Store) loop() {
	defer close(s.done)

	var (
		m = machine{
			State:     NewState(domain.Scope{}),
			chatLimit: s.opts.ChatHistory,
			now:       s.opts.Now,
			games:     make(map[string]int),
		}
		epoch    uint64
		watchers = make(map[uint64]chan State)
		roll     *time.Timer
	)

	defer func() {
		if roll != nil {
			roll.Stop()
		}
		for _, ch := range watchers {
			close(ch)
		}
		close(s.effects)
	}()

	publish := func() {
		for _, ch := range watchers {
			push(ch, m.State.Clone())
		}
	}

	for {
		var msg any
		select {
		case <-s.ctx.Done():
			return
		case msg = <-s.inbox:
		}

		switch msg := msg.(type) {
		case frameMsg:
			if msg.Epoch != epoch {
				zap.L().Debug("router.stale",
					zap.String("topic", msg.Topic),
					zap.Uint64("epoch", msg.Epoch),
					zap.Uint64("current", epoch))
				continue
			}
			kind, err := s.router.Dispatch(&m, msg.Topic, msg.Body)
			if err != nil {
				zap.L().Warn("router.drop",
					zap.String("topic", msg.Topic),
					zap.String("kind", string(kind)),
					zap.Error(err))
				continue
			}
			if m.startRoll {
				m.startRoll = false
				if roll != nil {
					roll.Stop()
				}
				gen := m.Animation.Gen
				roll = time.AfterFunc(s.opts.RollTimeout, func() { s.enqueue(settleMsg{gen: gen}) })
			}
			for _, e := range m.pending {
				s.emit(e)
			}
			m.pending = nil
			publish()

		case scopeMsg:
			if roll != nil {
				roll.Stop()
				roll = nil
			}
			m.reset(msg.scope)
			epoch = msg.epoch
			zap.L().Debug("session.scope", zap.String("scope", msg.scope.Key()), zap.Uint64("epoch", epoch))
			publish()

		case clearOverlayMsg:
			m.Overlay = ClearOverlay(m.Overlay, msg.kind)
			publish()

		case settleMsg:
			if m.Animation.Gen != msg.gen || !m.Animation.Rolling {
				continue
			}
			m.Animation.Rolling = false
			publish()

		case snapshotMsg:
			msg.reply <- m.State.Clone()

		case watchMsg:
			watchers[msg.id] = msg.ch
			push(msg.ch, m.State.Clone())

		case unwatchMsg:
			if ch, ok := watchers[msg.id]; ok {
				delete(watchers, msg.id)
				close(ch)
			}
		}
	}
}

func (s *Store) emit(e Effect) {
	select {
	case s.effects <- e:
	default:
		zap.L().Warn("session.effect_dropped", zap.Any("effect", e))
	}
}

// push replaces whatever is pending in ch with st. Only the loop writes to
// watcher channels, so the second send cannot block.
func push(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- st
}

// kindForTopic types payloads that arrive without a "type" field.
func kindForTopic(topic string) events.Kind {
	if strings.HasSuffix(topic, "/chat") {
		return events.KindChat
	}
	return ""
}
