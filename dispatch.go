package devnet

import "context"

// CmdLogin is the reserved command byte for the login handshake (§4.3).
// It must never appear as a key in a CommandTable: login is handled by
// doLogin before a DeviceConn (and its dispatch table) exist.
const CmdLogin uint8 = 0x01

// HandlerFunc handles one inbound Req or SimpleReq after the framing
// layer has already stripped the envelope (§4.4: "spawns an
// application-level handler with the frame"). Its return value becomes
// the Res/SimpleRes payload; a non-nil error becomes ec=1 with the error
// message carried in ErrInfo, unless it already is (or wraps) a
// *RemoteErr, in which case its Code/Msg are carried verbatim.
type HandlerFunc func(ctx context.Context, conn *DeviceConn, cmd uint8, value []byte) (any, error)

// CommandTable maps a command byte to the handler that serves it.
// Registering CmdLogin here is a caller bug: DeviceConn's handleReq and
// handleSimpleReq look up every inbound cmd, CmdLogin included, and invoke
// whatever handler is registered; a cmd with no entry gets an
// "unknown command" error reply.
type CommandTable map[uint8]HandlerFunc

func toRemoteErr(err error) *RemoteErr {
	if err == nil {
		return nil
	}
	if re, ok := AsRemoteErr(err); ok {
		return re
	}
	return &RemoteErr{Code: -1, Msg: err.Error()}
}
