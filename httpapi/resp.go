// Package httpapi exposes the operator-facing admin surface over
// gin-gonic/gin, grounded in original_source/src/web/{resp,api}.rs: CBOR
// request/response bodies and a response-header success/failure
// convention instead of relying on HTTP status codes to carry it.
package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
)

const (
	// RespHeader is set on every response this package writes; its value
	// is RespSucc or RespErr (mirrors the original's "resp"/"succ"/"err").
	RespHeader = "Resp-Header"
	RespSucc   = "succ"
	RespErr    = "err"

	contentTypeCBOR = "application/octet-stream"
)

type errBody struct {
	ErrCode int32  `cbor:"err_code"`
	ErrMsg  string `cbor:"err_msg"`
}

// bindCBOR reads the request body and decodes it as CBOR into dst.
func bindCBOR(c *gin.Context, dst any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("httpapi: read body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	return cbor.Unmarshal(body, dst)
}

// respondOK writes v as a successful CBOR response. Always HTTP 200; the
// RespHeader distinguishes success from failure, per the original's
// convention of never using the status line to carry application
// outcome.
func respondOK(c *gin.Context, v any) {
	body, err := cbor.Marshal(v)
	if err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	c.Header(RespHeader, RespSucc)
	c.Data(http.StatusOK, contentTypeCBOR, body)
}

// respondErr writes an application-level error as a CBOR ErrInfo body.
func respondErr(c *gin.Context, code int32, msg string) {
	body, err := cbor.Marshal(errBody{ErrCode: code, ErrMsg: msg})
	if err != nil {
		c.Header(RespHeader, RespErr)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header(RespHeader, RespErr)
	c.Data(http.StatusOK, contentTypeCBOR, body)
}

// respondStoreErr classifies err as a -1 generic store failure. The
// original distinguishes a small set of named error variants; this
// surface keeps a single catch-all since the store interface does not
// define a richer taxonomy than "operation failed".
func respondStoreErr(c *gin.Context, err error) {
	respondErr(c, -1, err.Error())
}
