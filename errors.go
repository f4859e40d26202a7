package devnet

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic names a frame header whose magic bytes don't match
	// FrameMagic. Like the three framing sentinels below, it is not returned
	// by readFrame, which reports every framing violation as a *ProtocolError.
	ErrBadMagic = errors.New("devnet: bad frame magic")
	// ErrBadLength names a frame whose declared length is below the header size.
	ErrBadLength = errors.New("devnet: bad frame length")
	// ErrBadType names a frame whose type discriminant is unknown.
	ErrBadType = errors.New("devnet: unknown frame type")
	// ErrShortBody names a body-bearing frame whose body is below the
	// variant's minimum size.
	ErrShortBody = errors.New("devnet: frame body too short")
	// ErrQueueFull is returned by exec_* / ack / res when the outbound write
	// queue has no free slot.
	ErrQueueFull = errors.New("devnet: write queue full")
	// ErrTimeout is returned when a waiter's deadline elapses before a reply arrives.
	ErrTimeout = errors.New("devnet: timed out waiting for reply")
	// ErrConnClosed is returned by client operations issued after the connection
	// has begun tearing down.
	ErrConnClosed = errors.New("devnet: connection closed")
	// ErrNotLogin is returned when the first frame of a new connection is not a
	// Req carrying CmdLogin.
	ErrNotLogin = errors.New("devnet: first frame is not a login request")
)

// ProtocolError wraps a framing/protocol violation (§7: Protocol category).
// It is always fatal to the connection that produced it.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "devnet: protocol error: " + e.Msg }

func protoErr(msg string) error { return &ProtocolError{Msg: msg} }

// RemoteErr is the Go form of the wire ErrInfo{err_code, err_msg} payload
// (§3, §7). It is returned to exec_* callers when a Res/SimpleRes arrives
// with ec != 0.
type RemoteErr struct {
	Code int32  `cbor:"err_code"`
	Msg  string `cbor:"err_msg"`
}

func (e *RemoteErr) Error() string {
	return fmt.Sprintf("devnet: remote error %d: %s", e.Code, e.Msg)
}

// AsRemoteErr reports whether err is (or wraps) a *RemoteErr, per §7
// ("surfaced to the caller of exec_* as a distinguishable application error").
func AsRemoteErr(err error) (*RemoteErr, bool) {
	var re *RemoteErr
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
