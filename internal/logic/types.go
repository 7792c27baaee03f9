// Package logic contains the timing core of the sync tester: edge measurement,
// the two animation sequencers and the lock that ties them together.
// This package has NO external dependencies (no GPIO, MQTT or OS access).
// Time is always injected as monotonic ticks.
package logic

import "time"

// RingSize is the number of positions on the light ring.
const RingSize = 12

// RingPosition indexes the ring from the 12 o'clock origin. Always in [0, RingSize).
type RingPosition uint8

// Prev returns the next position in sweep order. The ring is wired so that
// stepping the index down moves the light clockwise.
func (p RingPosition) Prev() RingPosition {
	return (p + RingSize - 1) % RingSize
}

// Phase selects which fixed pair the frame-phase sequencer lights.
type Phase uint8

const (
	PairA Phase = iota // positions 0 and 6
	PairB              // positions 3 and 9
)

var phasePairs = [2][2]RingPosition{
	PairA: {0, 6},
	PairB: {3, 9},
}

// Positions returns the two ring positions belonging to the pair.
func (p Phase) Positions() [2]RingPosition {
	return phasePairs[p&1]
}

// Toggle returns the other pair.
func (p Phase) Toggle() Phase {
	return p ^ 1
}

func (p Phase) String() string {
	if p == PairB {
		return "PAIR_B"
	}
	return "PAIR_A"
}

// Parity is the field (half-frame) state reported by the secondary line.
type Parity uint8

const (
	Even Parity = iota
	Odd
)

func (p Parity) String() string {
	if p == Odd {
		return "ODD"
	}
	return "EVEN"
}

// Level is the electrical level of an input line after an edge.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Ring drives the physical outputs: one line per ring position plus the
// auxiliary frame output.
type Ring interface {
	Set(pos RingPosition, on bool)
	SetAux(high bool)
}

// Rate is a derived frequency. Valid is false until a non-zero period has
// been measured.
type Rate struct {
	Hz    float64
	Valid bool
}

// RateFromPeriod derives a rate from a period in microseconds.
// A zero period is a degenerate measurement and yields an invalid rate.
func RateFromPeriod(periodUs uint32) Rate {
	if periodUs == 0 {
		return Rate{}
	}
	return Rate{Hz: 1_000_000 / float64(periodUs), Valid: true}
}

// MismatchToleranceHz is how far a measured rate may drift from the
// configured frame rate before it counts as a mismatch.
const MismatchToleranceHz = 0.5

// RateMismatch reports whether a valid measurement disagrees with the
// configured frame rate.
func RateMismatch(measured Rate, configuredHz int) bool {
	if !measured.Valid {
		return false
	}
	d := measured.Hz - float64(configuredHz)
	if d < 0 {
		d = -d
	}
	return d > MismatchToleranceHz
}

// Status is a point-in-time copy of every field the status collaborator reads.
type Status struct {
	FastSweepEnabled     bool
	FastSweepIntervalMs  uint32
	FramePhaseEnabled    bool
	FrameRateHz          int
	FrameHalfPeriodMs    uint32
	OutputEnabled        bool
	LockEnabled          bool
	SyncDetectionEnabled bool

	Position   RingPosition
	Phase      Phase
	LockResets uint32

	LineActive   bool
	SyncDetected bool
	EdgeCount    uint32
	PeriodUs     uint32
	MeasuredRate Rate
	RateMismatch bool

	Parity      Parity
	OddFieldUs  uint32
	EvenFieldUs uint32
}

// SignalState is the debounced presence of the sync signal.
type SignalState string

const (
	SignalPresent SignalState = "PRESENT"
	SignalAbsent  SignalState = "ABSENT"
)

// RateState is the debounced agreement between measured and configured rate.
type RateState string

const (
	RateMatch      RateState = "MATCH"
	RateMismatched RateState = "MISMATCH"
)

// EventType represents a watcher transition event.
type EventType string

const (
	EventSyncAcquired EventType = "SYNC_ACQUIRED"
	EventSyncLost     EventType = "SYNC_LOST"
	EventRateMismatch EventType = "RATE_MISMATCH"
	EventRateMatch    EventType = "RATE_MATCH"
)

// Event represents a transition to be published.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	Signal       SignalState
	Rate         RateState
	MeasuredRate Rate
	FrameRateHz  int
}

// WatchInput is a single status sample for the watcher.
type WatchInput struct {
	Time             time.Time
	EdgeCount        uint32
	MeasuredRate     Rate
	FrameRateHz      int
	DetectionEnabled bool
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Acquired   int
	Lost       int
	Mismatches int
	Matches    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
