package logic

import (
	"runtime"
	"sync/atomic"
)

// seqlock guards a group of atomics written by a single edge handler.
// The writer never blocks; readers retry until they see an even sequence
// that did not move while they were reading.
type seqlock struct {
	seq atomic.Uint32
}

func (l *seqlock) beginWrite() { l.seq.Add(1) }
func (l *seqlock) endWrite()   { l.seq.Add(1) }

func (l *seqlock) read(fn func()) {
	for {
		s := l.seq.Load()
		if s&1 == 0 {
			fn()
			if l.seq.Load() == s {
				return
			}
		}
		runtime.Gosched()
	}
}

// syncGroup is owned by the sync-line handler.
type syncGroup struct {
	lock     seqlock
	lastEdge atomic.Uint32 // µs tick of the last active edge
	haveEdge atomic.Bool
	periodUs atomic.Uint32
	edges    atomic.Uint32
	active   atomic.Bool
	detected atomic.Bool
}

// fieldGroup is owned by the field-line handler.
type fieldGroup struct {
	lock       seqlock
	parity     atomic.Uint32
	lastChange atomic.Uint32
	haveChange atomic.Bool
	oddUs      atomic.Uint32
	evenUs     atomic.Uint32
}

// SharedState is the record shared between the edge handlers and the poll
// loop. Every field has exactly one writer: the sync handler, the field
// handler, the configuration setters, or (for the trigger clear) the poll
// loop.
type SharedState struct {
	Settings *Settings

	sync    syncGroup
	field   fieldGroup
	trigger atomic.Bool
}

// NewSharedState wraps the given settings.
func NewSharedState(settings *Settings) *SharedState {
	return &SharedState{Settings: settings}
}

// Measurement is a consistent copy of the sync-line group.
type Measurement struct {
	LastEdgeUs uint32
	HaveEdge   bool
	PeriodUs   uint32
	Edges      uint32
	Active     bool
	Detected   bool
}

// Rate derives the measured rate from the period.
func (m Measurement) Rate() Rate {
	return RateFromPeriod(m.PeriodUs)
}

// FieldState is a consistent copy of the field-line group.
type FieldState struct {
	Parity       Parity
	LastChangeUs uint32
	HaveChange   bool
	OddUs        uint32
	EvenUs       uint32
}

// Measurement returns the sync-line group without tearing.
func (s *SharedState) Measurement() Measurement {
	var m Measurement
	s.sync.lock.read(func() {
		m = Measurement{
			LastEdgeUs: s.sync.lastEdge.Load(),
			HaveEdge:   s.sync.haveEdge.Load(),
			PeriodUs:   s.sync.periodUs.Load(),
			Edges:      s.sync.edges.Load(),
			Active:     s.sync.active.Load(),
			Detected:   s.sync.detected.Load(),
		}
	})
	return m
}

// Field returns the field-line group without tearing.
func (s *SharedState) Field() FieldState {
	var f FieldState
	s.field.lock.read(func() {
		f = FieldState{
			Parity:       Parity(s.field.parity.Load()),
			LastChangeUs: s.field.lastChange.Load(),
			HaveChange:   s.field.haveChange.Load(),
			OddUs:        s.field.oddUs.Load(),
			EvenUs:       s.field.evenUs.Load(),
		}
	})
	return f
}

// applySync is called only from the sync handler.
func (s *SharedState) applySync(u SyncUpdate) {
	g := &s.sync
	g.lock.beginWrite()
	g.active.Store(u.Active)
	if u.Edge {
		if u.Measured {
			g.periodUs.Store(u.PeriodUs)
		}
		g.lastEdge.Store(u.Time)
		g.haveEdge.Store(true)
		g.edges.Add(1)
		g.detected.Store(true)
	}
	g.lock.endWrite()
	if u.Trigger {
		s.trigger.Store(true)
	}
}

// applyField is called only from the field handler.
func (s *SharedState) applyField(u FieldUpdate) {
	g := &s.field
	g.lock.beginWrite()
	if u.Record {
		if u.Into == Odd {
			g.oddUs.Store(u.DurationUs)
		} else {
			g.evenUs.Store(u.DurationUs)
		}
	}
	g.parity.Store(uint32(u.Parity))
	g.lastChange.Store(u.Time)
	g.haveChange.Store(true)
	g.lock.endWrite()
}

// TakeTrigger clears the lock trigger and reports whether it was pending.
// Any number of sets since the last take collapse into one.
func (s *SharedState) TakeTrigger() bool {
	return s.trigger.Swap(false)
}

// TriggerPending reports the trigger without consuming it.
func (s *SharedState) TriggerPending() bool {
	return s.trigger.Load()
}
