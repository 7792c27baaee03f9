package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Signal        string        `json:"signal"`
	Rate          string        `json:"rate"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	Animation     AnimationJSON `json:"animation"`
	Sync          SyncJSON      `json:"sync"`
	Field         FieldJSON     `json:"field"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// AnimationJSON reports the animation settings and engine position.
type AnimationJSON struct {
	FastSweepEnabled    bool   `json:"fast_sweep_enabled"`
	FastSweepIntervalMs uint32 `json:"fast_sweep_interval_ms"`
	FramePhaseEnabled   bool   `json:"frame_phase_enabled"`
	FrameRateHz         int    `json:"frame_rate_hz"`
	HalfPeriodMs        uint32 `json:"half_period_ms"`
	OutputEnabled       bool   `json:"output_enabled"`
	LockEnabled         bool   `json:"lock_enabled"`
	Position            int    `json:"position"`
	Phase               string `json:"phase"`
	LockResets          uint32 `json:"lock_resets"`
}

// SyncJSON reports the sync line measurement. MeasuredRateHz is null until
// a period has been measured.
type SyncJSON struct {
	DetectionEnabled bool     `json:"detection_enabled"`
	LineActive       bool     `json:"line_active"`
	Detected         bool     `json:"detected"`
	EdgeCount        uint32   `json:"edge_count"`
	PeriodUs         uint32   `json:"period_us"`
	MeasuredRateHz   *float64 `json:"measured_rate_hz"`
	RateMismatch     bool     `json:"rate_mismatch"`
}

// FieldJSON reports the field line measurement.
type FieldJSON struct {
	Parity      string `json:"parity"`
	OddFieldUs  uint32 `json:"odd_field_us"`
	EvenFieldUs uint32 `json:"even_field_us"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Acquired   int `json:"sync_acquired"`
	Lost       int `json:"sync_lost"`
	Mismatches int `json:"rate_mismatch"`
	Matches    int `json:"rate_match"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollUs        int64  `json:"poll_us"`
	DebounceMs    int64  `json:"debounce_ms"`
	LossTimeoutMs int64  `json:"loss_timeout_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	Simulated     bool   `json:"simulated"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Core

	var rate *float64
	if c.MeasuredRate.Valid {
		hz := c.MeasuredRate.Hz
		rate = &hz
	}

	return StatusInner{
		Signal:        orUnknown(string(snap.Signal)),
		Rate:          orUnknown(string(snap.Rate)),
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Animation: AnimationJSON{
			FastSweepEnabled:    c.FastSweepEnabled,
			FastSweepIntervalMs: c.FastSweepIntervalMs,
			FramePhaseEnabled:   c.FramePhaseEnabled,
			FrameRateHz:         c.FrameRateHz,
			HalfPeriodMs:        c.FrameHalfPeriodMs,
			OutputEnabled:       c.OutputEnabled,
			LockEnabled:         c.LockEnabled,
			Position:            int(c.Position),
			Phase:               c.Phase.String(),
			LockResets:          c.LockResets,
		},
		Sync: SyncJSON{
			DetectionEnabled: c.SyncDetectionEnabled,
			LineActive:       c.LineActive,
			Detected:         c.SyncDetected,
			EdgeCount:        c.EdgeCount,
			PeriodUs:         c.PeriodUs,
			MeasuredRateHz:   rate,
			RateMismatch:     c.RateMismatch,
		},
		Field: FieldJSON{
			Parity:      c.Parity.String(),
			OddFieldUs:  c.OddFieldUs,
			EvenFieldUs: c.EvenFieldUs,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Acquired:   snap.Counts.Acquired,
			Lost:       snap.Counts.Lost,
			Mismatches: snap.Counts.Mismatches,
			Matches:    snap.Counts.Matches,
		},
		Config: ConfigJSON{
			PollUs:        snap.Config.PollUs,
			DebounceMs:    snap.Config.DebounceMs,
			LossTimeoutMs: snap.Config.LossTimeoutMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			Simulated:     snap.Config.Simulated,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// Build returns the status envelope for a snapshot, without event/reason.
func Build(snap Snapshot) StatusJSON {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)
	return StatusJSON{Status: inner}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
