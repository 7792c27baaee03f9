// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sync-tester/internal/logic"
)

// Topic is the MQTT topic for sync watcher events.
const Topic = "video/synctester/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "video/synctester/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a sync event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Sync SyncPayload `json:"sync"`
}

// SyncPayload contains the sync event details. MeasuredHz is null when no
// period has been measured.
type SyncPayload struct {
	Timestamp    string   `json:"timestamp"`
	Event        string   `json:"event"`
	Signal       string   `json:"signal"`
	Rate         string   `json:"rate"`
	MeasuredHz   *float64 `json:"measured_hz"`
	ConfiguredHz int      `json:"configured_hz"`
}

// FormatPayload creates the JSON payload for a sync event.
func FormatPayload(event logic.Event) ([]byte, error) {
	var measured *float64
	if event.MeasuredRate.Valid {
		hz := event.MeasuredRate.Hz
		measured = &hz
	}

	payload := Payload{
		Sync: SyncPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Event:        string(event.Type),
			Signal:       string(event.Signal),
			Rate:         string(event.Rate),
			MeasuredHz:   measured,
			ConfiguredHz: event.FrameRateHz,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (will, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
