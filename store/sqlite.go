// Package store implements devnet.Store over a local SQLite database,
// grounded in original_source/src/store/sql/{device,coin,bill}.rs:
// upsert-by-unique-MAC device rows, one coin/bill peripheral row per
// device, and a denomination-tally table for coin acceptors.
//
// The original uses sqlx with an async connection pool; here a single
// *sql.DB (modernc.org/sqlite, a pure-Go, cgo-free driver) plays the
// same role, serialized implicitly by database/sql's own connection
// pool and, for the multi-statement device-create path, an explicit
// transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tb_device (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	mac_addr TEXT NOT NULL UNIQUE,
	create_timestamp INTEGER NOT NULL,
	mcu_version TEXT NOT NULL,
	app_version TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tb_coin (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL UNIQUE,
	type_mask INTEGER NOT NULL,
	serial_number TEXT NOT NULL,
	model TEXT NOT NULL,
	version TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tb_coin_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL,
	coin_type INTEGER NOT NULL,
	coin_value INTEGER NOT NULL,
	coin_count INTEGER NOT NULL,
	UNIQUE(device_id, coin_type)
);
CREATE TABLE IF NOT EXISTS tb_bill (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL UNIQUE,
	type_mask INTEGER NOT NULL,
	serial_number TEXT NOT NULL,
	model TEXT NOT NULL,
	version TEXT NOT NULL
);
`

// Store is a devnet.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrent access
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateDeviceIfNotExists returns the id of the device with macAddr,
// creating it (with peripheral coin/bill rows) if this is the first
// time the MAC has been seen. Mirrors the original's
// select-then-insert-in-transaction shape.
func (s *Store) CreateDeviceIfNotExists(ctx context.Context, macAddr string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM tb_device WHERE mac_addr = ? LIMIT 1`, macAddr).Scan(&id)
	switch {
	case err == nil:
		return id, tx.Commit()
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("store: lookup device: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tb_device (name, mac_addr, create_timestamp, mcu_version, app_version)
		VALUES (?, ?, ?, ?, ?)`,
		"unnamed device", macAddr, time.Now().Unix(), "unknown", "unknown")
	if err != nil {
		return 0, fmt.Errorf("store: insert device: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tb_coin (device_id, type_mask, serial_number, model, version)
		VALUES (?, 0, 'unknown', 'unknown', 'unknown')`, id); err != nil {
		return 0, fmt.Errorf("store: insert coin row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tb_bill (device_id, type_mask, serial_number, model, version)
		VALUES (?, 0, 'unknown', 'unknown', 'unknown')`, id); err != nil {
		return 0, fmt.Errorf("store: insert bill row: %w", err)
	}

	return id, tx.Commit()
}

// SetAppVersion records the device's reported application version.
func (s *Store) SetAppVersion(ctx context.Context, id int64, version string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tb_device SET app_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("store: set app version: %w", err)
	}
	return nil
}

// SetMCUVersion records the device's reported MCU firmware version.
func (s *Store) SetMCUVersion(ctx context.Context, id int64, version string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tb_device SET mcu_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("store: set mcu version: %w", err)
	}
	return nil
}

// UpdateCoin updates the device's coin-acceptor identity row.
func (s *Store) UpdateCoin(ctx context.Context, id int64, model, version, serial string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tb_coin SET model = ?, version = ?, serial_number = ? WHERE device_id = ?`,
		model, version, serial, id)
	if err != nil {
		return fmt.Errorf("store: update coin: %w", err)
	}
	return nil
}

// UpdateBill updates the device's bill-acceptor identity row.
func (s *Store) UpdateBill(ctx context.Context, id int64, model, version, serial string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tb_bill SET model = ?, version = ?, serial_number = ? WHERE device_id = ?`,
		model, version, serial, id)
	if err != nil {
		return fmt.Errorf("store: update bill: %w", err)
	}
	return nil
}

// CoinInfo is one denomination tally row in tb_coin_info.
type CoinInfo struct {
	CoinType  uint8  `cbor:"coin_type"`
	CoinValue uint16 `cbor:"coin_value"`
	CoinCount uint8  `cbor:"coin_count"`
}

// UpdateCoinInfo replaces device id's denomination tallies with infos,
// deleting any coin_type not present in the new set (§ tb_coin_info,
// mirroring the original's update_info: upsert-present, delete-absent).
func (s *Store) UpdateCoinInfo(ctx context.Context, id int64, infos []CoinInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT coin_type FROM tb_coin_info WHERE device_id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: list coin types: %w", err)
	}
	existing := make(map[uint8]bool)
	for rows.Next() {
		var t uint8
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan coin type: %w", err)
		}
		existing[t] = true
	}
	rows.Close()

	seen := make(map[uint8]bool, len(infos))
	for _, info := range infos {
		seen[info.CoinType] = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tb_coin_info (device_id, coin_type, coin_value, coin_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(device_id, coin_type) DO UPDATE SET coin_value = excluded.coin_value, coin_count = excluded.coin_count`,
			id, info.CoinType, info.CoinValue, info.CoinCount); err != nil {
			return fmt.Errorf("store: upsert coin info: %w", err)
		}
	}
	for t := range existing {
		if !seen[t] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tb_coin_info WHERE device_id = ? AND coin_type = ?`, id, t); err != nil {
				return fmt.Errorf("store: delete stale coin info: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Coin is the coin-acceptor identity row for one device.
type Coin struct {
	ID           int64  `json:"id" cbor:"id"`
	DeviceID     int64  `json:"device_id" cbor:"device_id"`
	TypeMask     uint32 `json:"type_mask" cbor:"type_mask"`
	SerialNumber string `json:"serial_number" cbor:"serial_number"`
	Model        string `json:"model" cbor:"model"`
	Version      string `json:"version" cbor:"version"`
}

// Bill is the bill-acceptor identity row for one device.
type Bill struct {
	ID           int64  `json:"id" cbor:"id"`
	DeviceID     int64  `json:"device_id" cbor:"device_id"`
	TypeMask     uint32 `json:"type_mask" cbor:"type_mask"`
	SerialNumber string `json:"serial_number" cbor:"serial_number"`
	Model        string `json:"model" cbor:"model"`
	Version      string `json:"version" cbor:"version"`
}

// GetCoin returns the coin-acceptor row for a device.
func (s *Store) GetCoin(ctx context.Context, deviceID int64) (Coin, error) {
	var c Coin
	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, type_mask, serial_number, model, version
		FROM tb_coin WHERE device_id = ?`, deviceID).
		Scan(&c.ID, &c.DeviceID, &c.TypeMask, &c.SerialNumber, &c.Model, &c.Version)
	if err != nil {
		return Coin{}, fmt.Errorf("store: get coin: %w", err)
	}
	return c, nil
}

// GetBill returns the bill-acceptor row for a device.
func (s *Store) GetBill(ctx context.Context, deviceID int64) (Bill, error) {
	var b Bill
	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, type_mask, serial_number, model, version
		FROM tb_bill WHERE device_id = ?`, deviceID).
		Scan(&b.ID, &b.DeviceID, &b.TypeMask, &b.SerialNumber, &b.Model, &b.Version)
	if err != nil {
		return Bill{}, fmt.Errorf("store: get bill: %w", err)
	}
	return b, nil
}

// GetCoinInfo returns every denomination tally recorded for a device.
func (s *Store) GetCoinInfo(ctx context.Context, deviceID int64) ([]CoinInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coin_type, coin_value, coin_count FROM tb_coin_info WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("store: list coin info: %w", err)
	}
	defer rows.Close()

	var out []CoinInfo
	for rows.Next() {
		var info CoinInfo
		if err := rows.Scan(&info.CoinType, &info.CoinValue, &info.CoinCount); err != nil {
			return nil, fmt.Errorf("store: scan coin info: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// SetCoinTypeMask updates the bitmask of accepted coin types.
func (s *Store) SetCoinTypeMask(ctx context.Context, deviceID int64, mask uint32) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tb_coin SET type_mask = ? WHERE device_id = ?`, mask, deviceID)
	if err != nil {
		return fmt.Errorf("store: set coin type mask: %w", err)
	}
	return nil
}

// SetBillTypeMask updates the bitmask of accepted bill types.
func (s *Store) SetBillTypeMask(ctx context.Context, deviceID int64, mask uint32) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tb_bill SET type_mask = ? WHERE device_id = ?`, mask, deviceID)
	if err != nil {
		return fmt.Errorf("store: set bill type mask: %w", err)
	}
	return nil
}

// Device is the row shape returned to admin/HTTP consumers.
type Device struct {
	ID              int64  `json:"id" cbor:"id"`
	Name            string `json:"name" cbor:"name"`
	MACAddr         string `json:"mac_addr" cbor:"mac_addr"`
	CreateTimestamp int64  `json:"create_timestamp" cbor:"create_timestamp"`
	MCUVersion      string `json:"mcu_version" cbor:"mcu_version"`
	AppVersion      string `json:"app_version" cbor:"app_version"`
}

// Get returns the device row for id.
func (s *Store) Get(ctx context.Context, id int64) (Device, error) {
	var d Device
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, mac_addr, create_timestamp, mcu_version, app_version
		FROM tb_device WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.MACAddr, &d.CreateTimestamp, &d.MCUVersion, &d.AppVersion)
	if err != nil {
		return Device{}, fmt.Errorf("store: get device: %w", err)
	}
	return d, nil
}

// List returns every device row.
func (s *Store) List(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, mac_addr, create_timestamp, mcu_version, app_version FROM tb_device`)
	if err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.Name, &d.MACAddr, &d.CreateTimestamp, &d.MCUVersion, &d.AppVersion); err != nil {
			return nil, fmt.Errorf("store: scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Rename updates a device's display name.
func (s *Store) Rename(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tb_device SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("store: rename device: %w", err)
	}
	return nil
}

// Delete removes a device row (and, via the UNIQUE(device_id) peripheral
// rows, orphans rather than cascades — matching the original, which
// never deletes tb_coin/tb_bill rows on device delete).
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tb_device WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete device: %w", err)
	}
	return nil
}
