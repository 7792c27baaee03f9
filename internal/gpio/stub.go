//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/sync-tester/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealInputs is not available on non-Linux platforms.
type RealInputs struct{}

// NewRealInputs returns an error on non-Linux platforms.
func NewRealInputs(chipName string, pinSync, pinField int, sink EdgeSink) (*RealInputs, error) {
	return nil, errUnsupported
}

// Levels is not implemented on non-Linux platforms.
func (r *RealInputs) Levels() (logic.Level, logic.Level, error) {
	return logic.Low, logic.Low, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealInputs) Close() error {
	return nil
}

// RealRing is not available on non-Linux platforms.
type RealRing struct{}

// NewRealRing returns an error on non-Linux platforms.
func NewRealRing(chipName string, pins [logic.RingSize]int, pinAux int) (*RealRing, error) {
	return nil, errUnsupported
}

func (r *RealRing) Set(pos logic.RingPosition, on bool) {}
func (r *RealRing) SetAux(high bool)                    {}
func (r *RealRing) Errors() uint64                      { return 0 }
func (r *RealRing) Close() error                        { return nil }
