package devnet

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LoginReq is the CBOR payload carried by the first Req(cmd=CmdLogin)
// frame of a connection (§4.3).
type LoginReq struct {
	MACAddr    string          `cbor:"mac_addr"`
	AppVersion string          `cbor:"app_version"`
	MCUVersion *string         `cbor:"mcu_version,omitempty"`
	CoinInfo   *PeripheralInfo `cbor:"coin_info,omitempty"`
	BillInfo   *PeripheralInfo `cbor:"bill_info,omitempty"`
}

// PeripheralInfo describes a coin or bill acceptor reported at login
// (§4.3): `{model, version, serial_number}`.
type PeripheralInfo struct {
	Model        string `cbor:"model"`
	Version      string `cbor:"version"`
	SerialNumber string `cbor:"serial_number"`
}

var loginLog = logrus.WithField("component", "devnet.login")

// doLogin consumes the first frame of a freshly accepted socket (§4.3).
// On success it returns a fully constructed, registered, running
// DeviceConn; on any failure it closes nc itself and returns a non-nil
// error — the caller (the listener's accept loop) has nothing left to
// clean up either way.
func doLogin(ctx context.Context, nc net.Conn, cfg *Config, store Store, registry *Registry, dispatch CommandTable) (*DeviceConn, error) {
	frame, err := readFrameTimeout(nc, cfg.loginTimeout)
	if err != nil {
		cfg.metrics.IncrementLoginFailure()
		_ = nc.Close()
		return nil, err
	}

	if frame.Type != TypeReq || frame.Cmd != CmdLogin {
		cfg.metrics.IncrementLoginFailure()
		failLogin(nc, frame, "first frame is not a login request")
		return nil, ErrNotLogin
	}

	var req LoginReq
	if err := frame.ParseValue(&req); err != nil {
		cfg.metrics.IncrementLoginFailure()
		failLogin(nc, frame, "malformed login payload")
		return nil, err
	}

	id, err := store.CreateDeviceIfNotExists(ctx, req.MACAddr)
	if err != nil {
		cfg.metrics.IncrementLoginFailure()
		failLogin(nc, frame, "store error")
		return nil, err
	}
	if err := store.SetAppVersion(ctx, id, req.AppVersion); err != nil {
		cfg.metrics.IncrementLoginFailure()
		failLogin(nc, frame, "store error")
		return nil, err
	}
	if req.MCUVersion != nil {
		if err := store.SetMCUVersion(ctx, id, *req.MCUVersion); err != nil {
			cfg.metrics.IncrementLoginFailure()
			failLogin(nc, frame, "store error")
			return nil, err
		}
	}
	if req.CoinInfo != nil {
		if err := store.UpdateCoin(ctx, id, req.CoinInfo.Model, req.CoinInfo.Version, req.CoinInfo.SerialNumber); err != nil {
			cfg.metrics.IncrementLoginFailure()
			failLogin(nc, frame, "store error")
			return nil, err
		}
	}
	if req.BillInfo != nil {
		if err := store.UpdateBill(ctx, id, req.BillInfo.Model, req.BillInfo.Version, req.BillInfo.SerialNumber); err != nil {
			cfg.metrics.IncrementLoginFailure()
			failLogin(nc, frame, "store error")
			return nil, err
		}
	}

	if err := writeFrame(nc, newAck(frame.Seq)); err != nil {
		_ = nc.Close()
		return nil, err
	}
	if err := writeFrame(nc, newRes(TypeRes, frame.Seq, CmdLogin, encodeValue(id), nil)); err != nil {
		_ = nc.Close()
		return nil, err
	}

	cfg.metrics.IncrementLoginSuccess()
	lr := loginResult{macAddr: req.MACAddr, deviceID: id, sessionID: uuid.New().String()}
	loginLog.WithFields(logrus.Fields{
		"addr":     nc.RemoteAddr().String(),
		"mac_addr": req.MACAddr,
		"id":       id,
	}).Info("device logged in")

	conn := newDeviceConn(nc, lr, cfg, registry, dispatch)
	registry.Append(conn)
	go conn.run()
	return conn, nil
}

// failLogin optionally notifies the peer of why its login failed before
// closing the socket (§4.3, §9 Open Question: this implementation elects
// to send the Res rather than close silently).
func failLogin(nc net.Conn, frame Frame, msg string) {
	loginLog.WithField("addr", nc.RemoteAddr().String()).Warn("login failed: " + msg)
	if frame.Type == TypeReq {
		resFrame := newRes(TypeRes, frame.Seq, frame.Cmd, nil, &RemoteErr{Code: -1, Msg: msg})
		_ = writeFrame(nc, resFrame)
	}
	_ = nc.Close()
}
