package ws

import (
	"bytes"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// room is the set of consumers following one view. A room with dedupe set
// skips a frame equal to the last one it saw, so lifecycle consumers only
// hear about changes and not about every score tick.
type room struct {
	view   View
	dedupe bool

	mu    sync.RWMutex
	conns map[*clientConn]struct{}
	last  []byte
}

func newRoom(view View) *room {
	return &room{
		view:   view,
		dedupe: view == ViewLifecycle,
		conns:  map[*clientConn]struct{}{},
	}
}

func (r *room) add(c *clientConn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

func (r *room) remove(c *clientConn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	c.close()
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// broadcast reports how many consumers the frame was written to.
func (r *room) broadcast(msg []byte) int {
	r.mu.Lock()
	if r.dedupe && bytes.Equal(msg, r.last) {
		r.mu.Unlock()
		return 0
	}
	r.last = msg
	conns := make([]*clientConn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	// I/O outside the lock
	var failed []*clientConn
	for _, c := range conns {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		zap.L().Debug("ws.drop_consumer", zap.String("view", string(r.view)), zap.String("conn_id", c.id))
		r.remove(c)
	}
	return len(conns) - len(failed)
}
