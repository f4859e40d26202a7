package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/riftlabs/devnet"
	"github.com/riftlabs/devnet/store"
)

// Router holds the dependencies the admin surface reads/writes: the
// device record store and the live-connection registry the core
// maintains (§4.6).
type Router struct {
	store    *store.Store
	registry *devnet.Registry
}

// NewRouter builds a *gin.Engine serving the admin API under /api,
// mirroring original_source/src/web/api/mod.rs's scope layout
// (/device, /device/coin, /device/bill) plus a /connections view onto
// the registry that has no counterpart in the original (the protocol
// core's live-connection snapshot has no HTTP surface there).
func NewRouter(st *store.Store, registry *devnet.Registry) *gin.Engine {
	r := &Router{store: st, registry: registry}

	e := gin.New()
	e.Use(gin.Recovery())

	api := e.Group("/api")
	{
		dev := api.Group("/device")
		dev.POST("/create", r.createDevice)
		dev.POST("/get", r.getDevice)
		dev.POST("/select", r.selectDevices)
		dev.POST("/update", r.updateDevice)
		dev.POST("/delete", r.deleteDevice)

		coin := dev.Group("/coin")
		coin.POST("/get", r.getCoin)
		coin.POST("/get_info", r.getCoinInfo)
		coin.POST("/set_mask", r.setCoinMask)

		bill := dev.Group("/bill")
		bill.POST("/get", r.getBill)
		bill.POST("/set_mask", r.setBillMask)

		api.POST("/connections", r.connections)
	}

	return e
}

type createDeviceReq struct {
	MACAddr string `cbor:"mac_addr"`
}

func (r *Router) createDevice(c *gin.Context) {
	var req createDeviceReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	id, err := r.store.CreateDeviceIfNotExists(c.Request.Context(), req.MACAddr)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, id)
}

type idReq struct {
	ID int64 `cbor:"id"`
}

func (r *Router) getDevice(c *gin.Context) {
	var req idReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	d, err := r.store.Get(c.Request.Context(), req.ID)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, d)
}

func (r *Router) selectDevices(c *gin.Context) {
	devices, err := r.store.List(c.Request.Context())
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, devices)
}

type updateDeviceReq struct {
	ID   int64  `cbor:"id"`
	Name string `cbor:"name"`
}

func (r *Router) updateDevice(c *gin.Context) {
	var req updateDeviceReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	if err := r.store.Rename(c.Request.Context(), req.ID, req.Name); err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, nil)
}

func (r *Router) deleteDevice(c *gin.Context) {
	var req idReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	if err := r.store.Delete(c.Request.Context(), req.ID); err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, nil)
}

type deviceIDReq struct {
	DeviceID int64 `cbor:"device_id"`
}

func (r *Router) getCoin(c *gin.Context) {
	var req deviceIDReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	coin, err := r.store.GetCoin(c.Request.Context(), req.DeviceID)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, coin)
}

func (r *Router) getCoinInfo(c *gin.Context) {
	var req deviceIDReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	infos, err := r.store.GetCoinInfo(c.Request.Context(), req.DeviceID)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, infos)
}

type typeMaskReq struct {
	DeviceID int64  `cbor:"device_id"`
	Mask     uint32 `cbor:"mask"`
}

func (r *Router) setCoinMask(c *gin.Context) {
	var req typeMaskReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	if err := r.store.SetCoinTypeMask(c.Request.Context(), req.DeviceID, req.Mask); err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, nil)
}

func (r *Router) getBill(c *gin.Context) {
	var req deviceIDReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	bill, err := r.store.GetBill(c.Request.Context(), req.DeviceID)
	if err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, bill)
}

func (r *Router) setBillMask(c *gin.Context) {
	var req typeMaskReq
	if err := bindCBOR(c, &req); err != nil {
		respondErr(c, -1, err.Error())
		return
	}
	if err := r.store.SetBillTypeMask(c.Request.Context(), req.DeviceID, req.Mask); err != nil {
		respondStoreErr(c, err)
		return
	}
	respondOK(c, nil)
}

func (r *Router) connections(c *gin.Context) {
	respondOK(c, r.registry.Snapshot())
}
