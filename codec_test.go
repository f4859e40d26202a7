package devnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint24RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 255, 256, 65535, 65536, 0xFFFFFF} {
		buf := make([]byte, 3)
		putUint24(buf, v)
		assert.Equal(t, v, getUint24(buf))
	}
}

func TestUint16RoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	putUint16(buf, 0xE11E)
	assert.Equal(t, uint16(0xE11E), getUint16(buf))
}

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	type payload struct {
		MacAddr string `cbor:"mac_addr"`
		Count   int64  `cbor:"count"`
	}
	in := payload{MacAddr: "AA:BB:CC:DD:EE:01", Count: 7}
	body := encodeValue(in)

	var out payload
	require.NoError(t, decodeValue(body, &out))
	assert.Equal(t, in, out)
}

func TestEncodeValuePanicsOnUnencodable(t *testing.T) {
	assert.Panics(t, func() {
		encodeValue(make(chan int))
	})
}
