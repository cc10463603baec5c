package transport

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	DialTimeout       time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.ReconnectMaxDelay < o.ReconnectDelay {
		o.ReconnectMaxDelay = o.ReconnectDelay
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

// Connection owns exactly one session at a time and its reconnect policy.
// Callers never retry themselves; they only observe Status or register a
// Listener.
type Connection struct {
	base   context.Context
	dialer Dialer
	opts   Options

	// hookMu serializes listener callbacks, so listeners see transitions
	// in the order they happened.
	hookMu    sync.Mutex
	listeners []Listener

	mu      sync.Mutex
	status  Status
	session Session
	gen     uint64
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

func New(ctx context.Context, d Dialer, opts Options, listeners ...Listener) *Connection {
	return &Connection{
		base:      ctx,
		dialer:    d,
		opts:      opts.withDefaults(),
		listeners: listeners,
	}
}

// AddListener must not be called from inside a listener callback.
func (c *Connection) AddListener(l Listener) {
	c.hookMu.Lock()
	c.listeners = append(c.listeners, l)
	c.hookMu.Unlock()
}

func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session returns the live session, or nil unless connected.
func (c *Connection) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected {
		return nil
	}
	return c.session
}

func (c *Connection) LastActivity() time.Time {
	if s := c.Session(); s != nil {
		return s.LastActivity()
	}
	return time.Time{}
}

// Connect starts the manage loop unless one is already connecting or
// connected. Duplicate calls are no-ops.
func (c *Connection) Connect() {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	c.mu.Lock()
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return
	}
	if c.base.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	c.cancel = cancel
	c.doneCh = done
	c.status = StatusConnecting
	c.mu.Unlock()

	c.notifyLocked(StatusConnecting, nil)
	go c.manageLoop(ctx, gen, done)
}

// Disconnect tells listeners first, while the session is still open, then
// closes the socket and waits for the manage loop to exit.
func (c *Connection) Disconnect() {
	c.hookMu.Lock()
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		c.hookMu.Unlock()
		return
	}
	cancel, done, sess := c.cancel, c.doneCh, c.session
	c.gen++
	c.cancel, c.doneCh, c.session = nil, nil, nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	c.notifyLocked(StatusDisconnected, nil)
	c.hookMu.Unlock()

	cancel()
	if sess != nil {
		_ = sess.Close()
	}
	<-done
	zap.L().Info("transport.disconnected")
}

func (c *Connection) manageLoop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer c.retire(gen)

	// Per-generation source, no shared rand state.
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(gen)))
	backoff := c.opts.ReconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		sess, err := c.dialer.Dial(dialCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Warn("transport.dial", zap.Uint64("gen", gen), zap.Error(err))
			if !sleepBackoff(ctx, backoff, rng) {
				return
			}
			backoff = nextBackoff(backoff, c.opts.ReconnectMaxDelay)
			continue
		}

		if !c.transition(gen, StatusConnected, sess) {
			_ = sess.Close()
			return
		}
		connStart := time.Now()
		zap.L().Info("transport.connected", zap.Uint64("gen", gen))

		select {
		case <-ctx.Done():
			_ = sess.Close()
			return
		case <-sess.Done():
		}
		_ = sess.Close()

		if !c.transition(gen, StatusConnecting, nil) {
			return
		}
		zap.L().Warn("transport.lost", zap.Uint64("gen", gen), zap.Duration("uptime", time.Since(connStart)))

		if time.Since(connStart) > 10*time.Second {
			backoff = c.opts.ReconnectDelay
		}
		if !sleepBackoff(ctx, backoff, rng) {
			return
		}
		backoff = nextBackoff(backoff, c.opts.ReconnectMaxDelay)
	}
}

// retire settles a loop that stopped on its own, which only happens when
// the base context ends. Its session is already closed, so listeners drop
// their handles before hearing disconnected. After Disconnect it is a no-op.
func (c *Connection) retire(gen uint64) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.gen++
	c.cancel, c.doneCh, c.session = nil, nil, nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.notifyLocked(StatusConnecting, nil)
	c.notifyLocked(StatusDisconnected, nil)
	zap.L().Info("transport.disconnected", zap.Uint64("gen", gen), zap.String("reason", "context_done"))
}

// transition applies a status change from the manage loop of generation gen.
// It reports false when that loop has been superseded.
func (c *Connection) transition(gen uint64, st Status, sess Session) bool {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.status = st
	c.session = sess
	c.mu.Unlock()

	c.notifyLocked(st, sess)
	return true
}

func (c *Connection) notifyLocked(st Status, sess Session) {
	for _, l := range c.listeners {
		l.OnStatus(st, sess)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	n := cur * 2
	if n > max {
		n = max
	}
	return n
}

// sleepBackoff waits backoff +/-20% and reports false if ctx ended first.
func sleepBackoff(ctx context.Context, backoff time.Duration, rng *rand.Rand) bool {
	f := 1 + ((rng.Float64()*2 - 1) * 0.2)
	d := time.Duration(float64(backoff) * f)

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
