package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/devnet"
	"github.com/riftlabs/devnet/store"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewRouter(st, devnet.NewRegistry()), st
}

func post(t *testing.T, e *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		b, err := cbor.Marshal(body)
		require.NoError(t, err)
		buf.Write(b)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetDevice(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := post(t, e, "/api/device/create", map[string]any{"mac_addr": "AA:BB:CC:DD:EE:01"})
	assert.Equal(t, RespSucc, rec.Header().Get(RespHeader))
	var id int64
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &id))
	assert.Equal(t, int64(1), id)

	rec = post(t, e, "/api/device/get", map[string]any{"id": id})
	assert.Equal(t, RespSucc, rec.Header().Get(RespHeader))
	var d store.Device
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "AA:BB:CC:DD:EE:01", d.MACAddr)
}

func TestGetUnknownDeviceReturnsErr(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := post(t, e, "/api/device/get", map[string]any{"id": int64(999)})
	assert.Equal(t, RespErr, rec.Header().Get(RespHeader))
}

func TestSelectDevicesListsAll(t *testing.T) {
	e, st := newTestRouter(t)
	ctx := context.Background()
	_, err := st.CreateDeviceIfNotExists(ctx, "AA:BB:CC:DD:EE:02")
	require.NoError(t, err)
	_, err = st.CreateDeviceIfNotExists(ctx, "AA:BB:CC:DD:EE:03")
	require.NoError(t, err)

	rec := post(t, e, "/api/device/select", nil)
	assert.Equal(t, RespSucc, rec.Header().Get(RespHeader))
	var devices []store.Device
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &devices))
	assert.Len(t, devices, 2)
}

func TestSetCoinMask(t *testing.T) {
	e, st := newTestRouter(t)
	id, err := st.CreateDeviceIfNotExists(context.Background(), "AA:BB:CC:DD:EE:04")
	require.NoError(t, err)

	rec := post(t, e, "/api/device/coin/set_mask", map[string]any{"device_id": id, "mask": uint32(7)})
	assert.Equal(t, RespSucc, rec.Header().Get(RespHeader))

	rec = post(t, e, "/api/device/coin/get", map[string]any{"device_id": id})
	var coin store.Coin
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &coin))
	assert.Equal(t, uint32(7), coin.TypeMask)
}

func TestConnectionsSnapshot(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := post(t, e, "/api/connections", nil)
	assert.Equal(t, RespSucc, rec.Header().Get(RespHeader))
	var conns []devnet.ConnInfo
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &conns))
	assert.Empty(t, conns)
}
