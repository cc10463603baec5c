package gamesession

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizsync/internal/command"
	"quizsync/internal/domain"
	"quizsync/internal/session"
	"quizsync/internal/subscription"
	"quizsync/internal/transport"
)

var (
	ErrClosed         = errors.New("game session closed")
	ErrInvalidScope   = errors.New("invalid scope")
	ErrInvalidOverlay = errors.New("invalid overlay kind")
)

// Snapshot is what consumers see: connectivity plus a deep copy of the
// session state.
type Snapshot struct {
	Status       transport.Status `json:"status"`
	LastActivity time.Time        `json:"lastActivity"`
	State        session.State    `json:"state"`
}

// ResultSink receives the final scoreboard of every finished game.
type ResultSink interface {
	RecordResult(ctx context.Context, r session.GameFinished) error
}

type IGameSession interface {
	EnterChannel(channelID string) error
	EnterRoom(channelID, roomID string) error
	Leave() error
	Ready() bool
	StartGame() bool
	Chat(message string) bool
	RollDice() bool
	ClearOverlay(kind session.OverlayKind) error
	Snapshot() Snapshot
	Watch() (<-chan Snapshot, func())
	Close()
}

type Options struct {
	Connection transport.Options
	Session    session.Options
	Topics     subscription.Topics
	AppPrefix  string
	Sinks      []ResultSink
	// SinkTimeout bounds each ResultSink call.
	SinkTimeout time.Duration
}

type gameSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn   *transport.Connection
	mux    *subscription.Multiplexer
	store  *session.Store
	sender *command.Sender
	sinks  []ResultSink
	sinkTO time.Duration

	// opMu serializes scope changes and teardown.
	opMu   sync.Mutex
	closed bool

	watchMu  sync.Mutex
	watchers map[uint64]chan Snapshot
	watchSeq uint64
	last     Snapshot

	wg sync.WaitGroup
}

var _ IGameSession = (*gameSession)(nil)

func New(ctx context.Context, dialer transport.Dialer, opts Options) IGameSession {
	ctx, cancel := context.WithCancel(ctx)
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}

	gs := &gameSession{
		ctx:      ctx,
		cancel:   cancel,
		sinks:    opts.Sinks,
		sinkTO:   opts.SinkTimeout,
		watchers: make(map[uint64]chan Snapshot),
	}
	gs.store = session.NewStore(ctx, opts.Session)
	gs.mux = subscription.New(opts.Topics, gs.store, gs.store)
	gs.conn = transport.New(ctx, dialer, opts.Connection, gs.mux, transport.ListenerFunc(gs.onStatus))
	gs.sender = command.New(gs.conn, gs.mux, opts.AppPrefix)
	gs.last = Snapshot{State: gs.store.Snapshot()}

	states, _ := gs.store.Watch()
	gs.wg.Add(2)
	go gs.pump(states)
	go gs.runEffects()
	return gs
}

func (gs *gameSession) EnterChannel(channelID string) error {
	if channelID == "" {
		return ErrInvalidScope
	}
	return gs.enter(domain.ChannelScope(channelID))
}

func (gs *gameSession) EnterRoom(channelID, roomID string) error {
	if channelID == "" || roomID == "" {
		return ErrInvalidScope
	}
	return gs.enter(domain.RoomScope(channelID, roomID))
}

func (gs *gameSession) enter(scope domain.Scope) error {
	gs.opMu.Lock()
	defer gs.opMu.Unlock()
	if gs.closed {
		return ErrClosed
	}
	gs.mux.SetScope(scope)
	gs.conn.Connect()
	return nil
}

// Leave quits the live context. It returns once every topic is
// unsubscribed and the connection is down.
func (gs *gameSession) Leave() error {
	gs.opMu.Lock()
	defer gs.opMu.Unlock()
	if gs.closed {
		return ErrClosed
	}
	gs.leaveLocked()
	return nil
}

func (gs *gameSession) leaveLocked() {
	if gs.mux.Scope().Kind == domain.ScopeGameRoom {
		gs.sender.LeaveRoom()
	}
	gs.mux.SetScope(domain.Scope{})
	gs.conn.Disconnect()
}

func (gs *gameSession) Ready() bool              { return gs.sender.Ready() }
func (gs *gameSession) StartGame() bool          { return gs.sender.StartGame() }
func (gs *gameSession) Chat(message string) bool { return gs.sender.Chat(message) }
func (gs *gameSession) RollDice() bool           { return gs.sender.RollDice() }

func (gs *gameSession) ClearOverlay(kind session.OverlayKind) error {
	switch kind {
	case session.OverlayBubble, session.OverlayDice, session.OverlayHint:
	default:
		return ErrInvalidOverlay
	}
	gs.store.ClearOverlay(kind)
	return nil
}

func (gs *gameSession) Snapshot() Snapshot {
	return Snapshot{
		Status:       gs.conn.Status(),
		LastActivity: gs.conn.LastActivity(),
		State:        gs.store.Snapshot(),
	}
}

// Watch behaves like session.Store.Watch, but also fires on connection
// status changes.
func (gs *gameSession) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	gs.watchMu.Lock()
	defer gs.watchMu.Unlock()
	if gs.watchers == nil {
		close(ch)
		return ch, func() {}
	}
	gs.watchSeq++
	id := gs.watchSeq
	gs.watchers[id] = ch
	push(ch, gs.last)

	return ch, func() {
		gs.watchMu.Lock()
		defer gs.watchMu.Unlock()
		if c, ok := gs.watchers[id]; ok {
			delete(gs.watchers, id)
			close(c)
		}
	}
}

func (gs *gameSession) Close() {
	gs.opMu.Lock()
	if gs.closed {
		gs.opMu.Unlock()
		return
	}
	gs.closed = true
	gs.conn.Disconnect()
	gs.opMu.Unlock()

	gs.store.Close()
	gs.cancel()
	gs.wg.Wait()
	zap.L().Info("gamesession.closed")
}

// onStatus runs under the connection's listener lock; it must not block.
func (gs *gameSession) onStatus(st transport.Status, sess transport.Session) {
	gs.watchMu.Lock()
	defer gs.watchMu.Unlock()

	gs.last.Status = st
	gs.last.LastActivity = time.Time{}
	if sess != nil {
		gs.last.LastActivity = sess.LastActivity()
	}
	gs.fanoutLocked()
}

func (gs *gameSession) pump(states <-chan session.State) {
	defer gs.wg.Done()
	for st := range states {
		gs.watchMu.Lock()
		gs.last.State = st
		gs.fanoutLocked()
		gs.watchMu.Unlock()
	}

	gs.watchMu.Lock()
	for _, ch := range gs.watchers {
		close(ch)
	}
	gs.watchers = nil
	gs.watchMu.Unlock()
}

func (gs *gameSession) fanoutLocked() {
	for _, ch := range gs.watchers {
		snap := gs.last
		snap.State = snap.State.Clone()
		push(ch, snap)
	}
}

func (gs *gameSession) runEffects() {
	defer gs.wg.Done()
	for e := range gs.store.Effects() {
		switch e := e.(type) {
		case session.Redirect:
			gs.redirect(e)
		case session.GameFinished:
			gs.record(e)
		}
	}
}

func (gs *gameSession) redirect(r session.Redirect) {
	gs.opMu.Lock()
	defer gs.opMu.Unlock()
	if gs.closed || gs.mux.Scope() != r.From {
		return
	}
	zap.L().Warn("gamesession.refused", zap.String("from", r.From.Key()), zap.String("to", r.To.Key()))
	gs.mux.SetScope(r.To)
}

func (gs *gameSession) record(r session.GameFinished) {
	for _, sink := range gs.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), gs.sinkTO)
		if err := sink.RecordResult(ctx, r); err != nil {
			zap.L().Error("gamesession.record_result",
				zap.String("scope", r.Scope.Key()),
				zap.Int("game_seq", r.GameSeq),
				zap.Error(err))
		}
		cancel()
	}
}

// push keeps only the newest snapshot in ch. Callers hold watchMu.
func push(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}
