package logic

import "sync/atomic"

// Controller bundles the core for the poll loop and the status reader.
type Controller struct {
	State   *SharedState
	Monitor *SignalMonitor
	Engine  *AnimationEngine
	Lock    *LockController

	locks atomic.Uint32
}

// NewController builds the core around settings, driving ring.
func NewController(settings *Settings, ring Ring) *Controller {
	state := NewSharedState(settings)
	engine := NewAnimationEngine(settings, ring)
	return &Controller{
		State:   state,
		Monitor: NewSignalMonitor(state),
		Engine:  engine,
		Lock:    NewLockController(state, engine),
	}
}

// Poll runs one iteration of the poll loop. It never blocks. The lock
// trigger is consumed before either sequencer checks its interval, so a
// reset captured since the last iteration cannot be masked by a step.
func (c *Controller) Poll(nowMs uint32) {
	if c.Lock.Apply(nowMs) {
		c.locks.Add(1)
	}
	c.Engine.Tick(nowMs)
}

// LockResets returns how many lock resets the poll loop has applied.
func (c *Controller) LockResets() uint32 {
	return c.locks.Load()
}

// Status gathers the full read surface.
func (c *Controller) Status() Status {
	s := c.State.Settings
	m := c.State.Measurement()
	f := c.State.Field()
	rateHz, half := s.FrameRate()
	rate := m.Rate()

	return Status{
		FastSweepEnabled:     s.FastSweepEnabled(),
		FastSweepIntervalMs:  s.FastSweepIntervalMs(),
		FramePhaseEnabled:    s.FramePhaseEnabled(),
		FrameRateHz:          rateHz,
		FrameHalfPeriodMs:    half,
		OutputEnabled:        s.OutputEnabled(),
		LockEnabled:          s.LockEnabled(),
		SyncDetectionEnabled: s.SyncDetectionEnabled(),

		Position:   c.Engine.Position(),
		Phase:      c.Engine.Phase(),
		LockResets: c.locks.Load(),

		LineActive:   m.Active,
		SyncDetected: m.Detected,
		EdgeCount:    m.Edges,
		PeriodUs:     m.PeriodUs,
		MeasuredRate: rate,
		RateMismatch: s.SyncDetectionEnabled() && m.Detected && RateMismatch(rate, rateHz),

		Parity:      f.Parity,
		OddFieldUs:  f.OddUs,
		EvenFieldUs: f.EvenUs,
	}
}
