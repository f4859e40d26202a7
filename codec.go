package devnet

import (
	"github.com/fxamacker/cbor/v2"
)

// putUint8/putUint16/putUint24 and their decode counterparts give
// big-endian encode/decode for the fixed-width integers that make up a
// frame header (§4.1). Mirrors the teacher's BuildFrame header packing,
// generalized from a 4-byte length to the 3-byte length this wire
// protocol uses.

func putUint8(buf []byte, v uint8) {
	buf[0] = v
}

func putUint16(buf []byte, v uint16) {
	buf[0] = byte(v >> 8)
	buf[1] = byte(v)
}

func putUint24(buf []byte, v uint32) {
	buf[0] = byte(v >> 16)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v)
}

func getUint8(buf []byte) uint8 {
	return buf[0]
}

func getUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

func getUint24(buf []byte) uint32 {
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
}

var cborEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// encodeValue serializes v into the self-describing CBOR object format used
// for every frame's `value` body (§4.1). Encoding a well-typed Go value
// cannot fail; a failure here is a programmer bug, not a runtime condition.
func encodeValue(v any) []byte {
	b, err := cborEncMode.Marshal(v)
	if err != nil {
		panic("devnet: cbor encode of well-typed value failed: " + err.Error())
	}
	return b
}

// decodeValue deserializes a CBOR `value` body into dst.
func decodeValue(body []byte, dst any) error {
	return cbor.Unmarshal(body, dst)
}
