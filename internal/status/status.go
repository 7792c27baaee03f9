// Package status provides a thread-safe status tracker for the sync-tester
// daemon. It is read by the HTTP handlers, the live stream and MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sync-tester/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollUs        int64
	DebounceMs    int64
	LossTimeoutMs int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	Simulated     bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Core          logic.Status
	Signal        logic.SignalState
	Rate          logic.RateState
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. The core timing
// state is not copied in; it is read through source at snapshot time so a
// setter is visible on the next read.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	source func() logic.Status
}

// NewTracker creates a Tracker with the given start time, config and core
// status source. A nil source leaves Core zero-valued.
func NewTracker(startTime time.Time, cfg Config, source func() logic.Status) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		source: source,
	}
}

// Update sets the watcher states, baseline status, and event counts.
// Called from runLoop on every status tick.
func (t *Tracker) Update(signal logic.SignalState, rate logic.RateState, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Signal = signal
	t.snap.Rate = rate
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if t.source != nil {
		s.Core = t.source()
	}
	s.Now = time.Now()
	return s
}
