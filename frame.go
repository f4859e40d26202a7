package devnet

// Frame header layout (§3): 2-byte magic, 3-byte big-endian total length
// (header included), 1-byte sequence number, 1-byte type discriminant.
const (
	HeaderSize = 7
	FrameMagic = uint16(0xE11E)

	minReqBody = 1 // cmd
	minResBody = 2 // cmd + ec
)

// FrameType is the wire type discriminant (§3).
type FrameType uint8

const (
	TypeAck FrameType = iota
	TypePing
	TypePong
	TypeReq
	TypeRes
	TypeSimpleReq
	TypeSimpleRes
	TypeNotify
	TypeNotifyAck
)

func (t FrameType) String() string {
	switch t {
	case TypeAck:
		return "ack"
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeReq:
		return "req"
	case TypeRes:
		return "res"
	case TypeSimpleReq:
		return "simple_req"
	case TypeSimpleRes:
		return "simple_res"
	case TypeNotify:
		return "notify"
	case TypeNotifyAck:
		return "notify_ack"
	default:
		return "unknown"
	}
}

func (t FrameType) bodyLess() bool {
	return t == TypeAck || t == TypePing || t == TypePong
}

// correlationKey packs (frame-type, seq) into the 16-bit key used by the
// pending-response table (§4.4, §8).
func correlationKey(t FrameType, seq uint8) uint16 {
	return uint16(t)<<8 | uint16(seq)
}

// Frame is the decoded form of one wire unit: the tagged union of Ack,
// Ping, Pong, Req, Res, SimpleReq, SimpleRes, Notify, NotifyAck (§3).
//
// Not every field is meaningful for every Type: body-less variants
// (Ack/Ping/Pong) carry only Seq; Req-like variants (Req, SimpleReq,
// Notify, NotifyAck) carry Cmd and Value; Res-like variants (Res,
// SimpleRes) additionally carry Ec and, on error, an encoded ErrInfo in
// Value.
type Frame struct {
	Type  FrameType
	Seq   uint8
	Cmd   uint8
	Ec    uint8
	Value []byte
}

// Cmd/value accessors a caller would otherwise have to re-derive from the
// tagged union by hand.

// IsError reports whether a Res/SimpleRes frame carries ec != 0.
func (f Frame) IsError() bool { return f.Ec != 0 }

// ParseValue decodes f.Value as CBOR into dst. For Res/SimpleRes with
// Ec != 0, dst should be *RemoteErr instead of the success payload type.
func (f Frame) ParseValue(dst any) error {
	return decodeValue(f.Value, dst)
}

// encode materializes the frame into a single contiguous buffer (header +
// body), as the Framer's write operation requires (§4.2: "atomically;
// the write task... issues one write per frame").
func (f Frame) encode() []byte {
	var body []byte
	switch {
	case f.Type.bodyLess():
		body = nil
	case f.Type == TypeRes || f.Type == TypeSimpleRes:
		body = make([]byte, 2+len(f.Value))
		body[0] = f.Cmd
		body[1] = f.Ec
		copy(body[2:], f.Value)
	default: // Req, SimpleReq, Notify, NotifyAck
		body = make([]byte, 1+len(f.Value))
		body[0] = f.Cmd
		copy(body[1:], f.Value)
	}

	buf := make([]byte, HeaderSize+len(body))
	putUint16(buf, FrameMagic)
	putUint24(buf[2:], uint32(HeaderSize+len(body)))
	putUint8(buf[5:], f.Seq)
	putUint8(buf[6:], uint8(f.Type))
	copy(buf[HeaderSize:], body)
	return buf
}

// newAck, newPing, newPong, newReq, newRes, ... build frames for the
// send-side convenience constructors used throughout conn.go.

func newAck(seq uint8) Frame  { return Frame{Type: TypeAck, Seq: seq} }
func newPing(seq uint8) Frame { return Frame{Type: TypePing, Seq: seq} }
func newPong(seq uint8) Frame { return Frame{Type: TypePong, Seq: seq} }

func newReq(seq, cmd uint8, value []byte) Frame {
	return Frame{Type: TypeReq, Seq: seq, Cmd: cmd, Value: value}
}

func newSimpleReq(seq, cmd uint8, value []byte) Frame {
	return Frame{Type: TypeSimpleReq, Seq: seq, Cmd: cmd, Value: value}
}

func newNotify(seq, cmd uint8, value []byte) Frame {
	return Frame{Type: TypeNotify, Seq: seq, Cmd: cmd, Value: value}
}

func newNotifyAck(seq, cmd uint8, value []byte) Frame {
	return Frame{Type: TypeNotifyAck, Seq: seq, Cmd: cmd, Value: value}
}

// newRes builds a Res or SimpleRes frame (chosen by t) from a (value,
// appErr) result pair, following §4.1's ec=0/ec!=0 convention. A non-nil
// appErr is encoded as ErrInfo in Value with ec=1; otherwise value is
// carried as-is with ec=0.
func newRes(t FrameType, seq, cmd uint8, value []byte, appErr *RemoteErr) Frame {
	f := Frame{Type: t, Seq: seq, Cmd: cmd}
	if appErr != nil {
		f.Ec = 1
		f.Value = encodeValue(appErr)
	} else {
		f.Ec = 0
		f.Value = value
	}
	return f
}
