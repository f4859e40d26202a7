package devnet

import "sync/atomic"

// Metrics tracks per-process counters for the protocol engine. Mirrors the
// teacher's Increment*/Get* counter shape (aznet.Metrics), with the
// counter set redrawn around frames, logins and timeouts instead of
// storage transactions/bytes.
type Metrics interface {
	IncrementFramesSent()
	IncrementFramesReceived()
	IncrementLoginSuccess()
	IncrementLoginFailure()
	IncrementTimeout()
	IncrementQueueFull()
	IncrementProtocolError()

	GetFramesSent() int64
	GetFramesReceived() int64
	GetLoginSuccess() int64
	GetLoginFailure() int64
	GetTimeout() int64
	GetQueueFull() int64
	GetProtocolError() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	framesSent     int64
	framesReceived int64
	loginSuccess   int64
	loginFailure   int64
	timeout        int64
	queueFull      int64
	protocolErrors int64
}

// NewDefaultMetrics creates a zeroed DefaultMetrics.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementFramesSent()     { atomic.AddInt64(&m.framesSent, 1) }
func (m *DefaultMetrics) IncrementFramesReceived() { atomic.AddInt64(&m.framesReceived, 1) }
func (m *DefaultMetrics) IncrementLoginSuccess()   { atomic.AddInt64(&m.loginSuccess, 1) }
func (m *DefaultMetrics) IncrementLoginFailure()   { atomic.AddInt64(&m.loginFailure, 1) }
func (m *DefaultMetrics) IncrementTimeout()        { atomic.AddInt64(&m.timeout, 1) }
func (m *DefaultMetrics) IncrementQueueFull()      { atomic.AddInt64(&m.queueFull, 1) }
func (m *DefaultMetrics) IncrementProtocolError()  { atomic.AddInt64(&m.protocolErrors, 1) }

func (m *DefaultMetrics) GetFramesSent() int64     { return atomic.LoadInt64(&m.framesSent) }
func (m *DefaultMetrics) GetFramesReceived() int64 { return atomic.LoadInt64(&m.framesReceived) }
func (m *DefaultMetrics) GetLoginSuccess() int64   { return atomic.LoadInt64(&m.loginSuccess) }
func (m *DefaultMetrics) GetLoginFailure() int64   { return atomic.LoadInt64(&m.loginFailure) }
func (m *DefaultMetrics) GetTimeout() int64        { return atomic.LoadInt64(&m.timeout) }
func (m *DefaultMetrics) GetQueueFull() int64      { return atomic.LoadInt64(&m.queueFull) }
func (m *DefaultMetrics) GetProtocolError() int64  { return atomic.LoadInt64(&m.protocolErrors) }
