package logic

import "sync/atomic"

// AnimationEngine runs the fast sweep and the frame-phase pair. It is driven
// only from the poll loop; position and phase are atomics so the status
// collaborator can read them concurrently.
type AnimationEngine struct {
	settings *Settings
	ring     Ring

	position  atomic.Uint32
	phase     atomic.Uint32
	lastSweep uint32 // ms tick
	lastFrame uint32 // ms tick
}

// NewAnimationEngine creates an engine at position 0, PairA, with both
// sequencers stamped at tick 0.
func NewAnimationEngine(settings *Settings, ring Ring) *AnimationEngine {
	return &AnimationEngine{settings: settings, ring: ring}
}

// Position returns the next position the sweep will light.
func (e *AnimationEngine) Position() RingPosition {
	return RingPosition(e.position.Load())
}

// Phase returns the pair the frame-phase sequencer will light next.
func (e *AnimationEngine) Phase() Phase {
	return Phase(e.phase.Load())
}

// Tick advances whichever sequencers are due at nowMs.
func (e *AnimationEngine) Tick(nowMs uint32) {
	e.tickSweep(nowMs)
	e.tickFrame(nowMs)
}

// tickSweep lights the current position alone and steps clockwise.
// Elapsed time uses modular subtraction so tick wraparound is harmless.
func (e *AnimationEngine) tickSweep(nowMs uint32) bool {
	if !e.settings.FastSweepEnabled() {
		return false
	}
	if nowMs-e.lastSweep < e.settings.FastSweepIntervalMs() {
		return false
	}
	for i := RingPosition(0); i < RingSize; i++ {
		e.ring.Set(i, false)
	}
	pos := e.Position()
	e.ring.Set(pos, true)
	e.position.Store(uint32(pos.Prev()))
	e.lastSweep = nowMs
	return true
}

// tickFrame lights the selected pair, drives the aux output high for PairA
// and low for PairB, then toggles.
func (e *AnimationEngine) tickFrame(nowMs uint32) bool {
	if !e.settings.FramePhaseEnabled() {
		return false
	}
	_, half := e.settings.FrameRate()
	if nowMs-e.lastFrame < half {
		return false
	}
	for _, p := range [...]Phase{PairA, PairB} {
		for _, pos := range p.Positions() {
			e.ring.Set(pos, false)
		}
	}
	phase := e.Phase()
	for _, pos := range phase.Positions() {
		e.ring.Set(pos, true)
	}
	if e.settings.OutputEnabled() {
		e.ring.SetAux(phase == PairA)
	}
	e.phase.Store(uint32(phase.Toggle()))
	e.lastFrame = nowMs
	return true
}

// ResetSweep returns the sweep to position 0 and restamps it.
func (e *AnimationEngine) ResetSweep(nowMs uint32) {
	e.position.Store(0)
	e.lastSweep = nowMs
}

// ResetFrame returns the frame phase to PairA and restamps it.
func (e *AnimationEngine) ResetFrame(nowMs uint32) {
	e.phase.Store(uint32(PairA))
	e.lastFrame = nowMs
}

// SelfTest lights each position alone, clockwise from the origin, calling
// dwell between steps, then turns the ring off.
func SelfTest(ring Ring, dwell func()) {
	pos := RingPosition(0)
	for i := 0; i < RingSize; i++ {
		ring.Set(pos, true)
		dwell()
		ring.Set(pos, false)
		pos = pos.Prev()
	}
}
