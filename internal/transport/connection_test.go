package transport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizsync/internal/transport"
	"quizsync/internal/transport/transporttest"
)

type statusLog struct {
	mu  sync.Mutex
	got []transport.Status
}

func (l *statusLog) OnStatus(st transport.Status, _ transport.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, st)
}

func (l *statusLog) all() []transport.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]transport.Status(nil), l.got...)
}

func fastOpts() transport.Options {
	return transport.Options{
		ReconnectDelay:    10 * time.Millisecond,
		ReconnectMaxDelay: 20 * time.Millisecond,
		DialTimeout:       time.Second,
	}
}

func TestConnection_DuplicateConnectWhileConnecting(t *testing.T) {
	d := &transporttest.Dialer{}
	d.Hold()
	c := transport.New(context.Background(), d, fastOpts())
	defer c.Disconnect()

	c.Connect()
	c.Connect()

	require.Eventually(t, func() bool { return d.Dials() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, transport.StatusConnecting, c.Status())

	c.Connect()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, d.Dials())

	d.Release()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, d.Sessions())
}

func TestConnection_ConnectWhileConnectedIsNoop(t *testing.T) {
	d := &transporttest.Dialer{}
	c := transport.New(context.Background(), d, fastOpts())
	defer c.Disconnect()

	c.Connect()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)

	c.Connect()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, d.Dials())
	assert.NotNil(t, c.Session())
}

func TestConnection_ReconnectsAfterDrop(t *testing.T) {
	d := &transporttest.Dialer{}
	log := &statusLog{}
	c := transport.New(context.Background(), d, fastOpts(), log)
	defer c.Disconnect()

	c.Connect()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)
	first := d.Last()

	first.Drop()

	require.Eventually(t, func() bool {
		return d.Sessions() == 2 && c.Status() == transport.StatusConnected
	}, time.Second, 5*time.Millisecond)
	assert.NotSame(t, first, d.Last())
	assert.Equal(t, []transport.Status{
		transport.StatusConnecting,
		transport.StatusConnected,
		transport.StatusConnecting,
		transport.StatusConnected,
	}, log.all())
}

func TestConnection_DialFailureIsAStatusNotAnError(t *testing.T) {
	d := &transporttest.Dialer{}
	d.FailNext(2)
	c := transport.New(context.Background(), d, fastOpts())
	defer c.Disconnect()

	c.Connect()
	assert.Equal(t, transport.StatusConnecting, c.Status())

	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, d.Dials())
}

func TestConnection_DisconnectNotifiesBeforeClose(t *testing.T) {
	d := &transporttest.Dialer{}
	var sawOpen bool
	var live transport.Session
	c := transport.New(context.Background(), d, fastOpts(), transport.ListenerFunc(func(st transport.Status, sess transport.Session) {
		switch st {
		case transport.StatusConnected:
			live = sess
		case transport.StatusDisconnected:
			select {
			case <-live.Done():
			default:
				sawOpen = true
			}
		}
	}))

	c.Connect()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)

	c.Disconnect()
	assert.True(t, sawOpen)
	assert.Equal(t, transport.StatusDisconnected, c.Status())
	assert.Nil(t, c.Session())

	select {
	case <-d.Last().Done():
	default:
		t.Fatalf("session still open after Disconnect")
	}
}

func TestConnection_ConnectAfterDisconnect(t *testing.T) {
	d := &transporttest.Dialer{}
	c := transport.New(context.Background(), d, fastOpts())

	c.Connect()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)
	c.Disconnect()
	c.Disconnect()

	c.Connect()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, d.Sessions())
	c.Disconnect()
}

func TestConnection_BaseContextEndSettlesDisconnected(t *testing.T) {
	d := &transporttest.Dialer{}
	log := &statusLog{}
	ctx, cancel := context.WithCancel(context.Background())
	c := transport.New(ctx, d, fastOpts(), log)

	c.Connect()
	require.Eventually(t, func() bool { return c.Status() == transport.StatusConnected }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		got := log.all()
		return got[len(got)-1] == transport.StatusDisconnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, transport.StatusDisconnected, c.Status())
	assert.Nil(t, c.Session())

	got := log.all()
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []transport.Status{transport.StatusConnecting, transport.StatusDisconnected}, got[len(got)-2:])

	start := time.Now()
	c.Disconnect()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, log.all(), len(got), "Disconnect after the loop retired notifies nobody")

	c.Connect()
	assert.Equal(t, transport.StatusDisconnected, c.Status())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", transport.StatusDisconnected.String())
	assert.Equal(t, "connecting", transport.StatusConnecting.String())
	assert.Equal(t, "connected", transport.StatusConnected.String())
	assert.Equal(t, "unknown", transport.Status(42).String())
}
