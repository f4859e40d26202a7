package devnet

import "context"

// Store is the async key/record interface the core consumes (§6). It is
// implemented outside the core (package store); the core only ever calls
// through this interface, never touching SQL or any storage detail
// directly, per §1's "out of scope" boundary.
type Store interface {
	// CreateDeviceIfNotExists upserts a device row by MAC address and
	// returns its id, creating one (with peripheral coin/bill rows) the
	// first time a given mac_addr is seen (§4.3, §8: same MAC never
	// creates a second row).
	CreateDeviceIfNotExists(ctx context.Context, macAddr string) (int64, error)
	SetAppVersion(ctx context.Context, id int64, version string) error
	SetMCUVersion(ctx context.Context, id int64, version string) error
	UpdateCoin(ctx context.Context, id int64, model, version, serial string) error
	UpdateBill(ctx context.Context, id int64, model, version, serial string) error
}

// ConnInfo is the per-connection snapshot surfaced to the registry and,
// through it, to admin/HTTP consumers (§3, §6). It is a value snapshot,
// not a live handle: PingCount reflects the counter at the moment the
// snapshot was taken.
type ConnInfo struct {
	Addr      string
	MACAddr   string
	DeviceID  int64
	SessionID string
	PingCount int64
}
