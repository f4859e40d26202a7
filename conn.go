package devnet

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DeviceConn is the per-connection duplex actor (§4.4). It owns exactly
// one net.Conn and runs two goroutines against it: a read task and a
// write task. Every outbound frame, whether a client-initiated request
// or a server-side reply, flows through the write task's queue; no other
// code writes to the socket directly. Grounded in the teacher's Conn
// (aznet.go), which split flush (a writer goroutine draining a channel)
// from Read (consumed by the caller) — generalized here into a full
// pending-response table so exec_req/exec_simple_req/exec_ping can all be
// in flight concurrently, multiplexed by (frame type, seq).
type DeviceConn struct {
	netConn net.Conn
	addr    net.Addr

	macAddr   string
	deviceID  int64
	sessionID string

	pingCount atomic.Int64

	cfg      *Config
	registry *Registry
	dispatch CommandTable
	log      *logrus.Entry

	writeCh chan Frame

	seqMu sync.Mutex
	seq   uint8

	pendMu sync.Mutex
	pend   map[uint16]chan Frame

	exitOnce sync.Once
	exitCh   chan struct{}
}

// loginResult carries the identity established during the handshake
// (§4.3) into the DeviceConn constructor.
type loginResult struct {
	macAddr   string
	deviceID  int64
	sessionID string
}

func newDeviceConn(nc net.Conn, lr loginResult, cfg *Config, registry *Registry, dispatch CommandTable) *DeviceConn {
	c := &DeviceConn{
		netConn:   nc,
		addr:      nc.RemoteAddr(),
		macAddr:   lr.macAddr,
		deviceID:  lr.deviceID,
		sessionID: lr.sessionID,
		cfg:       cfg,
		registry:  registry,
		dispatch:  dispatch,
		log: logrus.WithFields(logrus.Fields{
			"component": "devnet.conn",
			"addr":      nc.RemoteAddr().String(),
			"mac_addr":  lr.macAddr,
		}),
		writeCh: make(chan Frame, cfg.writeQueueSize),
		pend:    make(map[uint16]chan Frame),
		exitCh:  make(chan struct{}),
	}
	return c
}

// run starts the read and write tasks and blocks until both have
// returned. Callers that want a non-blocking start should invoke it in
// its own goroutine (doLogin does, once the handshake succeeds).
func (c *DeviceConn) run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.readLoop()
	}()
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()
	wg.Wait()
}

// Info returns a point-in-time snapshot of the connection's identity and
// counters (§3, §6).
func (c *DeviceConn) Info() ConnInfo {
	return ConnInfo{
		Addr:      c.addr.String(),
		MACAddr:   c.macAddr,
		DeviceID:  c.deviceID,
		SessionID: c.sessionID,
		PingCount: c.pingCount.Load(),
	}
}

func (c *DeviceConn) nextSeq() uint8 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	s := c.seq
	c.seq++
	return s
}

// triggerExit closes exitCh and the underlying socket exactly once. Closing
// the socket is what unblocks a read task parked in a pending Read when the
// write task is the one that failed, and vice versa — net.Conn permits
// concurrent Read/Write from separate goroutines, so no read/write-half
// split type is needed here (unlike a Rust into_split()).
func (c *DeviceConn) triggerExit() {
	c.exitOnce.Do(func() {
		close(c.exitCh)
		_ = c.netConn.Close()
	})
}

// enqueue places f on the outbound queue without blocking (§4.4, §8: the
// queue capacity is fixed and a full queue is reported back to the
// caller rather than applying backpressure).
func (c *DeviceConn) enqueue(f Frame) error {
	select {
	case <-c.exitCh:
		return ErrConnClosed
	default:
	}
	select {
	case c.writeCh <- f:
		return nil
	default:
		c.cfg.metrics.IncrementQueueFull()
		return ErrQueueFull
	}
}

// registerWaiter installs a fresh, single-use channel under key and
// returns it. The channel is buffered so deliver() never blocks on a
// waiter that has already timed out and moved on.
func (c *DeviceConn) registerWaiter(key uint16) chan Frame {
	ch := make(chan Frame, 1)
	c.pendMu.Lock()
	c.pend[key] = ch
	c.pendMu.Unlock()
	return ch
}

// evict removes key's waiter if it is still exactly ch — guarding against
// a race where a reply arrived and was delivered between the waiter's
// timeout firing and evict acquiring the lock.
func (c *DeviceConn) evict(key uint16, ch chan Frame) {
	c.pendMu.Lock()
	if cur, ok := c.pend[key]; ok && cur == ch {
		delete(c.pend, key)
	}
	c.pendMu.Unlock()
}

// deliver routes an inbound Ack/Pong/Res/SimpleRes frame to its waiter,
// if one is registered. Returns false if no waiter was found (a late
// arrival after a timeout, or a frame nobody was waiting on).
func (c *DeviceConn) deliver(f Frame) bool {
	key := correlationKey(f.Type, f.Seq)
	c.pendMu.Lock()
	ch, ok := c.pend[key]
	if ok {
		delete(c.pend, key)
	}
	c.pendMu.Unlock()
	if !ok {
		return false
	}
	ch <- f
	return true
}

// await blocks on ch until a reply arrives, ctx is done, or timeout
// elapses, evicting the waiter on any non-delivery path.
func (c *DeviceConn) await(ctx context.Context, key uint16, ch chan Frame, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-ch:
		return f, nil
	case <-timer.C:
		c.evict(key, ch)
		c.cfg.metrics.IncrementTimeout()
		return Frame{}, ErrTimeout
	case <-ctx.Done():
		c.evict(key, ch)
		return Frame{}, ctx.Err()
	case <-c.exitCh:
		c.evict(key, ch)
		return Frame{}, ErrConnClosed
	}
}

// ExecReq sends a Req carrying cmd/value and waits first for an Ack, then
// for the matching Res (§4.4). The Ack wait uses cfg.ackTimeout; the Res
// wait uses the caller-supplied timeout, since application handlers may
// legitimately run longer than the fixed Ack budget.
func (c *DeviceConn) ExecReq(ctx context.Context, cmd uint8, value any, timeout time.Duration) ([]byte, error) {
	seq := c.nextSeq()
	ackCh := c.registerWaiter(correlationKey(TypeAck, seq))
	resCh := c.registerWaiter(correlationKey(TypeRes, seq))

	body := encodeValue(value)
	if err := c.enqueue(newReq(seq, cmd, body)); err != nil {
		c.evict(correlationKey(TypeAck, seq), ackCh)
		c.evict(correlationKey(TypeRes, seq), resCh)
		return nil, err
	}

	if _, err := c.await(ctx, correlationKey(TypeAck, seq), ackCh, c.cfg.ackTimeout); err != nil {
		c.evict(correlationKey(TypeRes, seq), resCh)
		return nil, err
	}

	res, err := c.await(ctx, correlationKey(TypeRes, seq), resCh, timeout)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		var re RemoteErr
		if decErr := res.ParseValue(&re); decErr != nil {
			return nil, decErr
		}
		return nil, &re
	}
	return res.Value, nil
}

// ExecSimpleReq sends a SimpleReq and waits directly for the matching
// SimpleRes; there is no intermediate Ack (§3, §4.4).
func (c *DeviceConn) ExecSimpleReq(ctx context.Context, cmd uint8, value any) ([]byte, error) {
	seq := c.nextSeq()
	key := correlationKey(TypeSimpleRes, seq)
	ch := c.registerWaiter(key)

	body := encodeValue(value)
	if err := c.enqueue(newSimpleReq(seq, cmd, body)); err != nil {
		c.evict(key, ch)
		return nil, err
	}

	res, err := c.await(ctx, key, ch, c.cfg.simpleTimeout)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		var re RemoteErr
		if decErr := res.ParseValue(&re); decErr != nil {
			return nil, decErr
		}
		return nil, &re
	}
	return res.Value, nil
}

// ExecPing sends a Ping and waits for the matching Pong (§4.4, §8: the
// ping law — the counter that advances on a successful ExecPing belongs
// to the peer's connection, incremented there by its read task's inbound
// Ping handling, not by this call).
func (c *DeviceConn) ExecPing(ctx context.Context) error {
	seq := c.nextSeq()
	key := correlationKey(TypePong, seq)
	ch := c.registerWaiter(key)

	if err := c.enqueue(newPing(seq)); err != nil {
		c.evict(key, ch)
		return err
	}

	_, err := c.await(ctx, key, ch, c.cfg.simpleTimeout)
	return err
}

// ack, res and simpleRes are the server-side reply primitives: none of
// them block on anything beyond the outbound queue (§4.4).
func (c *DeviceConn) ack(seq uint8) error { return c.enqueue(newAck(seq)) }

func (c *DeviceConn) res(seq, cmd uint8, value any, err error) error {
	var body []byte
	if err == nil {
		body = encodeValue(value)
	}
	return c.enqueue(newRes(TypeRes, seq, cmd, body, toRemoteErr(err)))
}

func (c *DeviceConn) simpleRes(seq, cmd uint8, value any, err error) error {
	var body []byte
	if err == nil {
		body = encodeValue(value)
	}
	return c.enqueue(newRes(TypeSimpleRes, seq, cmd, body, toRemoteErr(err)))
}

// readLoop is the read task (§4.4): it owns all reads off the socket,
// dispatches Ack/Pong/Res/SimpleRes to pending waiters, answers Ping with
// Pong, and spawns application handlers for Req/SimpleReq. It never
// removes the connection from the registry; that is the write task's job
// alone (§4.4, §8).
func (c *DeviceConn) readLoop() {
	defer c.triggerExit()
	ctx := context.Background()
	for {
		select {
		case <-c.exitCh:
			return
		default:
		}

		frame, err := readFrame(c.netConn)
		if err != nil {
			if _, ok := err.(*ProtocolError); ok {
				c.cfg.metrics.IncrementProtocolError()
				c.log.WithError(err).Warn("protocol error, tearing down connection")
			} else {
				c.log.WithError(err).Debug("read failed, tearing down connection")
			}
			return
		}
		c.cfg.metrics.IncrementFramesReceived()

		switch frame.Type {
		case TypeAck, TypePong, TypeRes, TypeSimpleRes:
			c.deliver(frame)

		case TypePing:
			c.pingCount.Add(1)
			if err := c.enqueue(newPong(frame.Seq)); err != nil {
				c.log.WithError(err).Warn("failed to enqueue pong")
			}

		case TypeReq:
			if err := c.ack(frame.Seq); err != nil {
				c.log.WithError(err).Warn("failed to enqueue ack")
			}
			go c.handleReq(ctx, frame)

		case TypeSimpleReq:
			go c.handleSimpleReq(ctx, frame)

		case TypeNotifyAck:
			if err := c.ack(frame.Seq); err != nil {
				c.log.WithError(err).Warn("failed to enqueue ack")
			}

		case TypeNotify:
			// No dispatch envelope is stipulated for inbound Notify beyond
			// framing; the core does not define an application hook for it.
		}
	}
}

func (c *DeviceConn) handleReq(ctx context.Context, frame Frame) {
	h, ok := c.dispatch[frame.Cmd]
	if !ok {
		_ = c.res(frame.Seq, frame.Cmd, nil, &RemoteErr{Code: -2, Msg: "unknown command"})
		return
	}
	value, err := h(ctx, c, frame.Cmd, frame.Value)
	_ = c.res(frame.Seq, frame.Cmd, value, err)
}

func (c *DeviceConn) handleSimpleReq(ctx context.Context, frame Frame) {
	h, ok := c.dispatch[frame.Cmd]
	if !ok {
		_ = c.simpleRes(frame.Seq, frame.Cmd, nil, &RemoteErr{Code: -2, Msg: "unknown command"})
		return
	}
	value, err := h(ctx, c, frame.Cmd, frame.Value)
	_ = c.simpleRes(frame.Seq, frame.Cmd, value, err)
}

// writeLoop is the write task (§4.4): the sole writer to the socket, and
// the sole remover of this connection from the registry on teardown.
func (c *DeviceConn) writeLoop() {
	for {
		select {
		case <-c.exitCh:
			c.teardown()
			return
		case f := <-c.writeCh:
			if err := writeFrame(c.netConn, f); err != nil {
				c.log.WithError(err).Debug("write failed, tearing down connection")
				c.triggerExit()
				c.teardown()
				return
			}
			c.cfg.metrics.IncrementFramesSent()
		}
	}
}

func (c *DeviceConn) teardown() {
	c.registry.Remove(c.addr.String())
}
