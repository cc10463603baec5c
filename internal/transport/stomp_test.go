package transport_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizsync/internal/transport"
)

func startBroker(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { _ = l.Close() })
	return l.Addr().String()
}

func tcpDialer(addr string) *transport.StompDialer {
	return transport.NewStompDialerWith(transport.StompOptions{Host: "/"},
		func(ctx context.Context) (io.ReadWriteCloser, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, "tcp", addr)
		})
}

func TestStompSession_SubscribeSendRoundTrip(t *testing.T) {
	addr := startBroker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := tcpDialer(addr).Dial(ctx)
	require.NoError(t, err)
	defer sess.Close()

	got := make(chan []byte, 1)
	sub, err := sess.Subscribe("/topic/room/7", func(body []byte) { got <- body })
	require.NoError(t, err)

	require.NoError(t, sess.Send("/topic/room/7", []byte(`{"type":"HINT","request":{"hint":"80s"}}`)))

	select {
	case body := <-got:
		assert.JSONEq(t, `{"type":"HINT","request":{"hint":"80s"}}`, string(body))
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	assert.False(t, sess.LastActivity().IsZero())

	require.NoError(t, sub.Unsubscribe())
}

func TestStompSession_CloseEndsSession(t *testing.T) {
	addr := startBroker(t)

	sess, err := tcpDialer(addr).Dial(context.Background())
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	select {
	case <-sess.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("session not done after Close")
	}
}

func TestStompDialer_DialErrorIsWrapped(t *testing.T) {
	d := transport.NewStompDialerWith(transport.StompOptions{}, func(ctx context.Context) (io.ReadWriteCloser, error) {
		return nil, io.ErrUnexpectedEOF
	})
	_, err := d.Dial(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
