package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"go.uber.org/zap"
)

const (
	closeWait   = 2 * time.Second
	readLimit   = 1 << 20
	contentType = "application/json"
)

var errUnsubscribeTimeout = errors.New("unsubscribe timed out")

type StompOptions struct {
	URL      string
	Host     string
	Login    string
	Passcode string
	Token    string

	HeartBeatOut time.Duration
	HeartBeatIn  time.Duration
}

// StompDialer opens STOMP sessions, over a WebSocket by default.
type StompDialer struct {
	opts    StompOptions
	dialRaw func(ctx context.Context) (io.ReadWriteCloser, error)
}

func NewStompDialer(opts StompOptions) *StompDialer {
	d := &StompDialer{opts: opts}
	d.dialRaw = d.dialWebsocket
	return d
}

// NewStompDialerWith speaks STOMP over whatever raw returns, e.g. a plain TCP
// broker.
func NewStompDialerWith(opts StompOptions, raw func(ctx context.Context) (io.ReadWriteCloser, error)) *StompDialer {
	return &StompDialer{opts: opts, dialRaw: raw}
}

func (d *StompDialer) Dial(ctx context.Context) (Session, error) {
	raw, err := d.dialRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial socket: %w", err)
	}
	tracked := newTrackedConn(raw)

	// stomp.Connect has no context; closing the socket unblocks it.
	type result struct {
		conn *stomp.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := stomp.Connect(tracked, d.connectOpts()...)
		ch <- result{conn: conn, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			_ = tracked.Close()
			return nil, fmt.Errorf("stomp connect: %w", r.err)
		}
		return &stompSession{conn: r.conn, rwc: tracked}, nil
	case <-ctx.Done():
		_ = tracked.Close()
		return nil, ctx.Err()
	}
}

func (d *StompDialer) connectOpts() []func(*stomp.Conn) error {
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.HeartBeat(d.opts.HeartBeatOut, d.opts.HeartBeatIn),
	}
	if d.opts.Host != "" {
		opts = append(opts, stomp.ConnOpt.Host(d.opts.Host))
	}
	if d.opts.Login != "" {
		opts = append(opts, stomp.ConnOpt.Login(d.opts.Login, d.opts.Passcode))
	}
	if d.opts.Token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+d.opts.Token))
	}
	return opts
}

func (d *StompDialer) dialWebsocket(ctx context.Context) (io.ReadWriteCloser, error) {
	h := http.Header{}
	if d.opts.Token != "" {
		h.Set("Authorization", "Bearer "+d.opts.Token)
	}
	c, _, err := websocket.Dial(ctx, d.opts.URL, &websocket.DialOptions{
		HTTPHeader:   h,
		Subprotocols: []string{"v12.stomp", "v11.stomp"},
	})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)

	// The net.Conn must outlive the dial context.
	connCtx, cancel := context.WithCancel(context.Background())
	return &cancelOnClose{Conn: websocket.NetConn(connCtx, c, websocket.MessageText), cancel: cancel}, nil
}

type cancelOnClose struct {
	net.Conn
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.Conn.Close()
	c.cancel()
	return err
}

// trackedConn records inbound activity and closes done on the first read
// error or Close. The stomp reader stops on a missed heartbeat by closing
// the socket, so done also covers heartbeat loss.
type trackedConn struct {
	io.ReadWriteCloser
	last atomic.Int64

	once     sync.Once
	done     chan struct{}
	closeErr error
}

func newTrackedConn(rwc io.ReadWriteCloser) *trackedConn {
	t := &trackedConn{ReadWriteCloser: rwc, done: make(chan struct{})}
	t.last.Store(time.Now().UnixNano())
	return t
}

func (t *trackedConn) Read(p []byte) (int, error) {
	n, err := t.ReadWriteCloser.Read(p)
	if n > 0 {
		t.last.Store(time.Now().UnixNano())
	}
	if err != nil {
		_ = t.Close()
	}
	return n, err
}

func (t *trackedConn) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.closeErr = t.ReadWriteCloser.Close()
	})
	return t.closeErr
}

type stompSession struct {
	conn      *stomp.Conn
	rwc       *trackedConn
	closeOnce sync.Once
}

func (s *stompSession) Subscribe(topic string, h func(body []byte)) (Subscription, error) {
	sub, err := s.conn.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	go func() {
		for msg := range sub.C {
			if msg.Err != nil {
				zap.L().Debug("stomp.subscription", zap.String("topic", topic), zap.Error(msg.Err))
				continue
			}
			h(msg.Body)
		}
	}()
	return &stompSubscription{sub: sub}, nil
}

func (s *stompSession) Send(destination string, body []byte) error {
	return s.conn.Send(destination, contentType, body)
}

func (s *stompSession) Done() <-chan struct{} { return s.rwc.done }

func (s *stompSession) LastActivity() time.Time { return time.Unix(0, s.rwc.last.Load()) }

// Close tries a graceful DISCONNECT first and forces the socket shut if
// the receipt does not arrive within closeWait.
func (s *stompSession) Close() error {
	s.closeOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			_ = s.conn.Disconnect()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeWait):
			_ = s.conn.MustDisconnect()
		}
		_ = s.rwc.Close()
	})
	return nil
}

type stompSubscription struct {
	sub *stomp.Subscription
}

// Unsubscribe waits for the broker receipt, bounded by closeWait.
func (u *stompSubscription) Unsubscribe() error {
	errCh := make(chan error, 1)
	go func() { errCh <- u.sub.Unsubscribe() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(closeWait):
		return errUnsubscribeTimeout
	}
}
