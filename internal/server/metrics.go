package server

import "sync/atomic"

// RoomMetrics counts what the tick loop and the socket pumps do. All fields
// are touched with atomics so the /metrics handler can read them from outside
// the tick goroutine.
type RoomMetrics struct {
	TickCount      int64
	InputsApplied  int64
	InputsDropped  int64 // superseded by a newer sample in the same tick
	BuildsAccepted int64
	BuildsRejected int64
	SnapshotsSent  int64
	SendsDropped   int64 // client send queue full
	TotalTickNs    int64
}

func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

func (m *RoomMetrics) IncInputApplied()   { atomic.AddInt64(&m.InputsApplied, 1) }
func (m *RoomMetrics) IncInputDropped()   { atomic.AddInt64(&m.InputsDropped, 1) }
func (m *RoomMetrics) IncBuildAccepted()  { atomic.AddInt64(&m.BuildsAccepted, 1) }
func (m *RoomMetrics) IncBuildRejected()  { atomic.AddInt64(&m.BuildsRejected, 1) }
func (m *RoomMetrics) AddSnapshots(n int) { atomic.AddInt64(&m.SnapshotsSent, int64(n)) }
func (m *RoomMetrics) IncSendDropped()    { atomic.AddInt64(&m.SendsDropped, 1) }

// Snapshot returns a read-only copy for the HTTP metrics endpoint.
func (m *RoomMetrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(total) / float64(ticks) / 1e6
	}
	return map[string]any{
		"tick_count":      ticks,
		"inputs_applied":  atomic.LoadInt64(&m.InputsApplied),
		"inputs_dropped":  atomic.LoadInt64(&m.InputsDropped),
		"builds_accepted": atomic.LoadInt64(&m.BuildsAccepted),
		"builds_rejected": atomic.LoadInt64(&m.BuildsRejected),
		"snapshots_sent":  atomic.LoadInt64(&m.SnapshotsSent),
		"sends_dropped":   atomic.LoadInt64(&m.SendsDropped),
		"avg_tick_ms":     avgMs,
	}
}
