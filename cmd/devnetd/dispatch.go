package main

import (
	"context"

	"github.com/fxamacker/cbor/v2"

	"github.com/riftlabs/devnet"
	"github.com/riftlabs/devnet/store"
)

// Post-login command bytes (§4.5), reserved beyond devnet.CmdLogin.
const (
	cmdSetAppVersion uint8 = 0x10
	cmdSetMCUVersion uint8 = 0x11
	cmdCoinUpdate    uint8 = 0x12
	cmdCoinInfoUpd   uint8 = 0x13
	cmdBillUpdate    uint8 = 0x14
)

type versionReq struct {
	Version string `cbor:"version"`
}

type peripheralUpdateReq struct {
	Model        string `cbor:"model"`
	Version      string `cbor:"version"`
	SerialNumber string `cbor:"serial_number"`
}

type coinInfoUpdateReq struct {
	Infos []store.CoinInfo `cbor:"infos"`
}

// buildDispatch wires each post-login command to the store, reading the
// device id off the connection's own login-time identity (§4.5,
// original_source's web/api/device/{coin,bill}.rs intents, moved onto
// the device-initiated wire path instead of the HTTP admin path).
func buildDispatch(st *store.Store) devnet.CommandTable {
	return devnet.CommandTable{
		cmdSetAppVersion: func(ctx context.Context, conn *devnet.DeviceConn, cmd uint8, value []byte) (any, error) {
			var req versionReq
			if err := cbor.Unmarshal(value, &req); err != nil {
				return nil, err
			}
			id := conn.Info().DeviceID
			return nil, st.SetAppVersion(ctx, id, req.Version)
		},
		cmdSetMCUVersion: func(ctx context.Context, conn *devnet.DeviceConn, cmd uint8, value []byte) (any, error) {
			var req versionReq
			if err := cbor.Unmarshal(value, &req); err != nil {
				return nil, err
			}
			id := conn.Info().DeviceID
			return nil, st.SetMCUVersion(ctx, id, req.Version)
		},
		cmdCoinUpdate: func(ctx context.Context, conn *devnet.DeviceConn, cmd uint8, value []byte) (any, error) {
			var req peripheralUpdateReq
			if err := cbor.Unmarshal(value, &req); err != nil {
				return nil, err
			}
			id := conn.Info().DeviceID
			return nil, st.UpdateCoin(ctx, id, req.Model, req.Version, req.SerialNumber)
		},
		cmdCoinInfoUpd: func(ctx context.Context, conn *devnet.DeviceConn, cmd uint8, value []byte) (any, error) {
			var req coinInfoUpdateReq
			if err := cbor.Unmarshal(value, &req); err != nil {
				return nil, err
			}
			id := conn.Info().DeviceID
			return nil, st.UpdateCoinInfo(ctx, id, req.Infos)
		},
		cmdBillUpdate: func(ctx context.Context, conn *devnet.DeviceConn, cmd uint8, value []byte) (any, error) {
			var req peripheralUpdateReq
			if err := cbor.Unmarshal(value, &req); err != nil {
				return nil, err
			}
			id := conn.Info().DeviceID
			return nil, st.UpdateBill(ctx, id, req.Model, req.Version, req.SerialNumber)
		},
	}
}
