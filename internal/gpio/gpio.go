// Package gpio connects the timing core to GPIO lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device: edge events on
// the inputs stand in for interrupts, and the ring is a set of output lines.
// The fake implementations allow testing without hardware.
package gpio

import "github.com/sweeney/sync-tester/internal/logic"

// EdgeSink receives edge notifications from the input lines.
// logic.SignalMonitor implements it.
type EdgeSink interface {
	OnSyncEdge(level logic.Level, nowUs uint32)
	OnFieldEdge(level logic.Level, nowUs uint32)
}

// Inputs owns the sync and field input lines.
type Inputs interface {
	// Levels returns the current raw levels of the sync and field lines.
	Levels() (sync, field logic.Level, err error)

	// Close releases GPIO resources.
	Close() error
}

// Outputs drives the ring and aux lines.
type Outputs interface {
	logic.Ring

	// Errors returns how many line writes have failed since startup.
	Errors() uint64

	// Close drives every line low and releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device holding the header pins.
const DefaultChip = "gpiochip0"

// Pin definitions (BCM numbering)
const (
	DefaultPinSync  = 17
	DefaultPinField = 27
	DefaultPinAux   = 4
)

// DefaultRingPins maps ring positions, from 12 o'clock, to BCM pins.
var DefaultRingPins = [logic.RingSize]int{5, 6, 13, 19, 26, 16, 20, 21, 12, 25, 24, 23}

// consumer labels requested lines in gpioinfo output.
const consumer = "sync-tester"
