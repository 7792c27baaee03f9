package logic

import "sync"

// recordingRing is a Ring that keeps the current output state and a log of
// aux writes.
type recordingRing struct {
	mu  sync.Mutex
	on  [RingSize]bool
	aux []bool
	lit []RingPosition // positions switched on, in order
}

func (r *recordingRing) Set(pos RingPosition, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.on[pos] = on
	if on {
		r.lit = append(r.lit, pos)
	}
}

func (r *recordingRing) SetAux(high bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aux = append(r.aux, high)
}

func (r *recordingRing) litPositions() []RingPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RingPosition
	for i, on := range r.on {
		if on {
			out = append(out, RingPosition(i))
		}
	}
	return out
}

func (r *recordingRing) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.on = [RingSize]bool{}
	r.aux = nil
	r.lit = nil
}

// sweepOnlySettings returns settings with only the fast sweep running.
func sweepOnlySettings(intervalMs int) *Settings {
	s := NewSettings()
	s.SetFramePhaseEnabled(false)
	s.SetFastSweepInterval(intervalMs)
	return s
}

// frameOnlySettings returns settings with only the frame phase running.
func frameOnlySettings(rateHz int) *Settings {
	s := NewSettings()
	s.SetFastSweepEnabled(false)
	s.SetFrameRate(rateHz)
	return s
}
