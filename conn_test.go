package devnet

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnPair(t *testing.T, opts ...Option) (*DeviceConn, net.Conn, *Registry) {
	t.Helper()
	clientSide, peerSide := net.Pipe()
	cfg := applyConfig(opts)
	registry := NewRegistry()
	dc := newDeviceConn(clientSide, loginResult{macAddr: "AA:BB:CC:DD:EE:01", deviceID: 1, sessionID: "s-1"}, cfg, registry, CommandTable{})
	registry.Append(dc)
	go dc.run()
	t.Cleanup(func() {
		dc.triggerExit()
		_ = peerSide.Close()
	})
	return dc, peerSide, registry
}

func TestDeviceConnPingIncrementsPeerCounter(t *testing.T) {
	dc, peer, _ := newTestConnPair(t)

	require.NoError(t, writeFrame(peer, newPing(0)))
	pong, err := readFrame(peer)
	require.NoError(t, err)
	assert.Equal(t, TypePong, pong.Type)
	assert.Equal(t, uint8(0), pong.Seq)

	assert.Eventually(t, func() bool { return dc.Info().PingCount == 1 }, time.Second, time.Millisecond)
}

func TestDeviceConnExecReqAckThenRes(t *testing.T) {
	dc, peer, _ := newTestConnPair(t)

	done := make(chan struct{})
	var result []byte
	var resErr error
	go func() {
		result, resErr = dc.ExecReq(context.Background(), 0x20, map[string]any{"x": 1}, time.Second)
		close(done)
	}()

	req, err := readFrame(peer)
	require.NoError(t, err)
	assert.Equal(t, TypeReq, req.Type)
	assert.Equal(t, uint8(0x20), req.Cmd)

	require.NoError(t, writeFrame(peer, newAck(req.Seq)))
	require.NoError(t, writeFrame(peer, newRes(TypeRes, req.Seq, req.Cmd, encodeValue(42), nil)))

	<-done
	require.NoError(t, resErr)
	var got int
	require.NoError(t, decodeValue(result, &got))
	assert.Equal(t, 42, got)
}

func TestDeviceConnExecReqRemoteError(t *testing.T) {
	dc, peer, _ := newTestConnPair(t)

	done := make(chan struct{})
	var resErr error
	go func() {
		_, resErr = dc.ExecReq(context.Background(), 0x20, nil, time.Second)
		close(done)
	}()

	req, err := readFrame(peer)
	require.NoError(t, err)
	require.NoError(t, writeFrame(peer, newAck(req.Seq)))
	require.NoError(t, writeFrame(peer, newRes(TypeRes, req.Seq, req.Cmd, nil, &RemoteErr{Code: 7, Msg: "denied"})))

	<-done
	require.Error(t, resErr)
	re, ok := AsRemoteErr(resErr)
	require.True(t, ok)
	assert.Equal(t, int32(7), re.Code)
	assert.Equal(t, "denied", re.Msg)
}

func TestDeviceConnExecSimpleReqTimeout(t *testing.T) {
	dc, _, _ := newTestConnPair(t, WithSimpleTimeout(30*time.Millisecond))

	_, err := dc.ExecSimpleReq(context.Background(), 0x30, nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDeviceConnEnqueueQueueFull(t *testing.T) {
	clientSide, peerSide := net.Pipe()
	defer clientSide.Close()
	defer peerSide.Close()
	cfg := applyConfig([]Option{WithWriteQueueSize(1)})
	registry := NewRegistry()
	dc := newDeviceConn(clientSide, loginResult{macAddr: "m", deviceID: 1, sessionID: "s"}, cfg, registry, CommandTable{})

	require.NoError(t, dc.enqueue(newPing(0)))
	err := dc.enqueue(newPing(1))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDeviceConnTeardownRemovesFromRegistry(t *testing.T) {
	dc, peer, registry := newTestConnPair(t)
	assert.Equal(t, 1, registry.Len())

	_ = peer.Close()

	assert.Eventually(t, func() bool { return registry.Len() == 0 }, time.Second, time.Millisecond)
	_, ok := registry.Get(dc.addr.String())
	assert.False(t, ok)
}

func TestDeviceConnSequenceWraps(t *testing.T) {
	dc, _, _ := newTestConnPair(t)
	var first uint8
	for i := 0; i < 257; i++ {
		s := dc.nextSeq()
		if i == 0 {
			first = s
		}
		if i == 256 {
			assert.Equal(t, first, s, "sequence counter should wrap after 256 allocations")
		}
	}
}
