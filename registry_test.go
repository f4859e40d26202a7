package devnet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeAddr lets tests give two net.Pipe ends distinct addresses; real
// net.Pipe connections all stringify to the same "pipe" address, which
// would otherwise collide in a keyed-by-address registry.
type fakeAddr string

func (a fakeAddr) Network() string { return "test" }
func (a fakeAddr) String() string  { return string(a) }

type addrConn struct {
	net.Conn
	addr net.Addr
}

func (c addrConn) RemoteAddr() net.Addr { return c.addr }

func newAddrPipe(addr string) net.Conn {
	c, _ := net.Pipe()
	return addrConn{Conn: c, addr: fakeAddr(addr)}
}

func TestRegistryAppendRemoveSnapshot(t *testing.T) {
	registry := NewRegistry()
	cfg := applyConfig(nil)

	c1 := newAddrPipe("peer-1:9000")
	c2 := newAddrPipe("peer-2:9000")
	defer c1.Close()
	defer c2.Close()

	dc1 := newDeviceConn(c1, loginResult{macAddr: "m1", deviceID: 1, sessionID: "s1"}, cfg, registry, CommandTable{})
	dc2 := newDeviceConn(c2, loginResult{macAddr: "m2", deviceID: 2, sessionID: "s2"}, cfg, registry, CommandTable{})

	registry.Append(dc1)
	registry.Append(dc2)
	assert.Equal(t, 2, registry.Len())

	snap := registry.Snapshot()
	assert.Len(t, snap, 2)

	registry.Remove(dc1.addr.String())
	assert.Equal(t, 1, registry.Len())

	_, ok := registry.Get(dc1.addr.String())
	assert.False(t, ok)
	_, ok = registry.Get(dc2.addr.String())
	assert.True(t, ok)
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Remove("nonexistent")
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryReplaceOnReconnect(t *testing.T) {
	registry := NewRegistry()
	cfg := applyConfig(nil)

	c1 := newAddrPipe("peer-1:9000")
	c2 := newAddrPipe("peer-1:9000")
	defer c1.Close()
	defer c2.Close()

	dc1 := newDeviceConn(c1, loginResult{macAddr: "m1", deviceID: 1, sessionID: "s1"}, cfg, registry, CommandTable{})
	dc2 := newDeviceConn(c2, loginResult{macAddr: "m1", deviceID: 1, sessionID: "s2"}, cfg, registry, CommandTable{})

	registry.Append(dc1)
	registry.Append(dc2)

	assert.Equal(t, 1, registry.Len())
	got, ok := registry.Get("peer-1:9000")
	assert.True(t, ok)
	assert.Equal(t, "s2", got.Info().SessionID)
}
