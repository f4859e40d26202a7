package devnet

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	byMAC     map[string]int64
	nextID    int64
	appVers   map[int64]string
	mcuVers   map[int64]string
	coinCalls int
	billCalls int
	failMAC   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byMAC:   make(map[string]int64),
		appVers: make(map[int64]string),
		mcuVers: make(map[int64]string),
	}
}

func (s *fakeStore) CreateDeviceIfNotExists(ctx context.Context, macAddr string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if macAddr == s.failMAC {
		return 0, assertErr{"induced store failure"}
	}
	if id, ok := s.byMAC[macAddr]; ok {
		return id, nil
	}
	s.nextID++
	s.byMAC[macAddr] = s.nextID
	return s.nextID, nil
}

func (s *fakeStore) SetAppVersion(ctx context.Context, id int64, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appVers[id] = version
	return nil
}

func (s *fakeStore) SetMCUVersion(ctx context.Context, id int64, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mcuVers[id] = version
	return nil
}

func (s *fakeStore) UpdateCoin(ctx context.Context, id int64, model, version, serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coinCalls++
	return nil
}

func (s *fakeStore) UpdateBill(ctx context.Context, id int64, model, version, serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.billCalls++
	return nil
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestDoLoginSuccess(t *testing.T) {
	nc, peer := net.Pipe()
	defer peer.Close()

	cfg := applyConfig(nil)
	registry := NewRegistry()
	st := newFakeStore()

	resultCh := make(chan struct {
		conn *DeviceConn
		err  error
	}, 1)
	go func() {
		conn, err := doLogin(context.Background(), nc, cfg, st, registry, CommandTable{})
		resultCh <- struct {
			conn *DeviceConn
			err  error
		}{conn, err}
	}()

	mcu := "mcu-1.0"
	req := LoginReq{MACAddr: "AA:BB:CC:DD:EE:01", AppVersion: "1.0", MCUVersion: &mcu}
	require.NoError(t, writeFrame(peer, newReq(7, CmdLogin, encodeValue(req))))

	ack, err := readFrame(peer)
	require.NoError(t, err)
	assert.Equal(t, TypeAck, ack.Type)
	assert.Equal(t, uint8(7), ack.Seq)

	res, err := readFrame(peer)
	require.NoError(t, err)
	assert.Equal(t, TypeRes, res.Type)
	assert.False(t, res.IsError())
	var id int64
	require.NoError(t, res.ParseValue(&id))
	assert.Equal(t, int64(1), id)

	result := <-resultCh
	require.NoError(t, result.err)
	require.NotNil(t, result.conn)
	assert.Equal(t, int64(1), result.conn.Info().DeviceID)
	assert.Equal(t, "mcu-1.0", st.mcuVers[1])

	assert.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, time.Millisecond)
}

func TestDoLoginWrongCmdRejected(t *testing.T) {
	nc, peer := net.Pipe()
	defer peer.Close()

	cfg := applyConfig(nil)
	registry := NewRegistry()
	st := newFakeStore()

	errCh := make(chan error, 1)
	go func() {
		_, err := doLogin(context.Background(), nc, cfg, st, registry, CommandTable{})
		errCh <- err
	}()

	require.NoError(t, writeFrame(peer, newReq(1, 0x02, encodeValue(struct{}{}))))

	res, err := readFrame(peer)
	require.NoError(t, err)
	assert.Equal(t, TypeRes, res.Type)
	assert.True(t, res.IsError())

	err = <-errCh
	assert.ErrorIs(t, err, ErrNotLogin)
	assert.Equal(t, 0, registry.Len())
}

func TestDoLoginDuplicateMACIsIdempotent(t *testing.T) {
	cfg := applyConfig(nil)
	registry := NewRegistry()
	st := newFakeStore()

	login := func() int64 {
		nc, peer := net.Pipe()
		defer peer.Close()

		resultCh := make(chan *DeviceConn, 1)
		go func() {
			conn, err := doLogin(context.Background(), nc, cfg, st, registry, CommandTable{})
			require.NoError(t, err)
			resultCh <- conn
		}()

		req := LoginReq{MACAddr: "AA:BB:CC:DD:EE:02", AppVersion: "1.0"}
		require.NoError(t, writeFrame(peer, newReq(1, CmdLogin, encodeValue(req))))
		_, err := readFrame(peer) // ack
		require.NoError(t, err)
		_, err = readFrame(peer) // res
		require.NoError(t, err)

		conn := <-resultCh
		return conn.Info().DeviceID
	}

	id1 := login()
	id2 := login()
	assert.Equal(t, id1, id2)
}
