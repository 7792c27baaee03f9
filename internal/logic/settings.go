package logic

import (
	"math"
	"sync/atomic"
)

// Bounds and defaults for the animation settings.
const (
	MinFastSweepIntervalMs = 1
	MinFrameRateHz         = 1
	MaxFrameRateHz         = 120

	DefaultFastSweepIntervalMs = 1
	DefaultFrameRateHz         = 24
)

// Settings is the live configuration read by the engine and the edge
// handlers and written by configuration collaborators. Every field is
// atomic; setters clamp before storing so the engine never sees an
// invalid value.
type Settings struct {
	fastSweepEnabled     atomic.Bool
	fastSweepIntervalMs  atomic.Uint32
	framePhaseEnabled    atomic.Bool
	frame                atomic.Uint64 // rate<<32 | half-period ms
	outputEnabled        atomic.Bool
	lockEnabled          atomic.Bool
	syncDetectionEnabled atomic.Bool
}

// NewSettings returns settings with the power-on defaults: both sequencers
// running, 1 ms sweep, 24 Hz frames, output and lock off, detection on.
func NewSettings() *Settings {
	s := &Settings{}
	s.SetFastSweepEnabled(true)
	s.SetFastSweepInterval(DefaultFastSweepIntervalMs)
	s.SetFramePhaseEnabled(true)
	s.SetFrameRate(DefaultFrameRateHz)
	s.SetSyncDetectionEnabled(true)
	return s
}

// HalfPeriodMs returns the frame-phase tick interval for a frame rate:
// two ticks per frame, floor division.
func HalfPeriodMs(rateHz int) uint32 {
	return uint32(1000 / (rateHz * 2))
}

func (s *Settings) SetFastSweepEnabled(v bool) { s.fastSweepEnabled.Store(v) }
func (s *Settings) FastSweepEnabled() bool     { return s.fastSweepEnabled.Load() }

// SetFastSweepInterval stores the sweep step interval, floored at 1 ms.
// It returns the stored value.
func (s *Settings) SetFastSweepInterval(ms int) uint32 {
	if ms < MinFastSweepIntervalMs {
		ms = MinFastSweepIntervalMs
	}
	v := uint32(math.MaxUint32)
	if uint64(ms) < math.MaxUint32 {
		v = uint32(ms)
	}
	s.fastSweepIntervalMs.Store(v)
	return v
}

func (s *Settings) FastSweepIntervalMs() uint32 { return s.fastSweepIntervalMs.Load() }

func (s *Settings) SetFramePhaseEnabled(v bool) { s.framePhaseEnabled.Store(v) }
func (s *Settings) FramePhaseEnabled() bool     { return s.framePhaseEnabled.Load() }

// SetFrameRate clamps the rate to [1, 120] and stores it together with the
// recomputed half-period in one atomic word. It returns the stored rate.
func (s *Settings) SetFrameRate(hz int) int {
	if hz < MinFrameRateHz {
		hz = MinFrameRateHz
	}
	if hz > MaxFrameRateHz {
		hz = MaxFrameRateHz
	}
	s.frame.Store(uint64(hz)<<32 | uint64(HalfPeriodMs(hz)))
	return hz
}

// FrameRate returns the configured rate and its half-period as one
// consistent pair.
func (s *Settings) FrameRate() (hz int, halfPeriodMs uint32) {
	v := s.frame.Load()
	return int(v >> 32), uint32(v)
}

func (s *Settings) SetOutputEnabled(v bool) { s.outputEnabled.Store(v) }
func (s *Settings) OutputEnabled() bool     { return s.outputEnabled.Load() }

func (s *Settings) SetLockEnabled(v bool) { s.lockEnabled.Store(v) }
func (s *Settings) LockEnabled() bool     { return s.lockEnabled.Load() }

func (s *Settings) SetSyncDetectionEnabled(v bool) { s.syncDetectionEnabled.Store(v) }
func (s *Settings) SyncDetectionEnabled() bool     { return s.syncDetectionEnabled.Load() }
