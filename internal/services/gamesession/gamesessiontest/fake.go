// Package gamesessiontest provides a scriptable IGameSession for tests of
// the HTTP and WebSocket surfaces.
package gamesessiontest

import (
	"sync"

	"quizsync/internal/domain"
	"quizsync/internal/services/gamesession"
	"quizsync/internal/session"
)

// Fake records every call. Commands report Connected.
type Fake struct {
	mu        sync.Mutex
	snap      gamesession.Snapshot
	calls     []string
	chats     []string
	cleared   []session.OverlayKind
	scopes    []domain.Scope
	watchers  []chan gamesession.Snapshot
	Connected bool
	EnterErr  error
}

var _ gamesession.IGameSession = (*Fake)(nil)

func New(snap gamesession.Snapshot) *Fake {
	return &Fake{snap: snap, Connected: true}
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *Fake) EnterChannel(channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnterErr != nil {
		return f.EnterErr
	}
	f.scopes = append(f.scopes, domain.ChannelScope(channelID))
	return nil
}

func (f *Fake) EnterRoom(channelID, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EnterErr != nil {
		return f.EnterErr
	}
	f.scopes = append(f.scopes, domain.RoomScope(channelID, roomID))
	return nil
}

func (f *Fake) Leave() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, domain.Scope{})
	return nil
}

func (f *Fake) Ready() bool     { f.record("ready"); return f.connected() }
func (f *Fake) StartGame() bool { f.record("start"); return f.connected() }
func (f *Fake) RollDice() bool  { f.record("dice"); return f.connected() }

func (f *Fake) Chat(message string) bool {
	f.mu.Lock()
	f.chats = append(f.chats, message)
	f.mu.Unlock()
	f.record("chat")
	return f.connected()
}

func (f *Fake) ClearOverlay(kind session.OverlayKind) error {
	switch kind {
	case session.OverlayBubble, session.OverlayDice, session.OverlayHint:
	default:
		return gamesession.ErrInvalidOverlay
	}
	f.mu.Lock()
	f.cleared = append(f.cleared, kind)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Snapshot() gamesession.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *Fake) Watch() (<-chan gamesession.Snapshot, func()) {
	ch := make(chan gamesession.Snapshot, 16)
	f.mu.Lock()
	f.watchers = append(f.watchers, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *Fake) Close() {}

// Publish sets the snapshot and hands it to every watcher.
func (f *Fake) Publish(snap gamesession.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
	for _, ch := range f.watchers {
		ch <- snap
	}
}

// Watchers reports how many Watch calls were made.
func (f *Fake) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Chats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chats...)
}

func (f *Fake) Cleared() []session.OverlayKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.OverlayKind(nil), f.cleared...)
}

func (f *Fake) Scopes() []domain.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Scope(nil), f.scopes...)
}

func (f *Fake) connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}
