package logic

// LockController turns a pending sync trigger into sequencer resets.
type LockController struct {
	state  *SharedState
	engine *AnimationEngine
}

// NewLockController wires the trigger in state to engine.
func NewLockController(state *SharedState, engine *AnimationEngine) *LockController {
	return &LockController{state: state, engine: engine}
}

// Apply consumes the trigger. If it was set, each enabled sequencer returns
// to its start and is restamped to nowMs, so its next step is a full
// interval away. Reports whether a reset happened.
func (c *LockController) Apply(nowMs uint32) bool {
	if !c.state.TakeTrigger() {
		return false
	}
	s := c.state.Settings
	if s.FastSweepEnabled() {
		c.engine.ResetSweep(nowMs)
	}
	if s.FramePhaseEnabled() {
		c.engine.ResetFrame(nowMs)
	}
	return true
}
