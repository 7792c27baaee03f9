package logic

// SyncInput is everything the sync-line handler needs to evaluate one edge.
type SyncInput struct {
	Level            Level
	Time             uint32 // µs tick
	LastEdge         uint32
	HaveLastEdge     bool
	DetectionEnabled bool
	LockEnabled      bool
}

// SyncUpdate describes how an edge changes the sync-line group.
type SyncUpdate struct {
	Ignore   bool // detection disabled, nothing changes
	Active   bool
	Edge     bool // an active edge: restamp, count, mark detected
	Measured bool
	PeriodUs uint32
	Time     uint32
	Trigger  bool
}

// EvaluateSyncEdge applies the sync-line rules to one edge. The line is
// active low: a falling edge starts a frame. Glitches are not filtered.
func EvaluateSyncEdge(in SyncInput) SyncUpdate {
	if !in.DetectionEnabled {
		return SyncUpdate{Ignore: true}
	}
	if in.Level != Low {
		return SyncUpdate{Active: false}
	}
	u := SyncUpdate{
		Active:  true,
		Edge:    true,
		Time:    in.Time,
		Trigger: in.LockEnabled,
	}
	if in.HaveLastEdge {
		u.Measured = true
		u.PeriodUs = in.Time - in.LastEdge
	}
	return u
}

// FieldInput is everything the field-line handler needs to evaluate one edge.
type FieldInput struct {
	Level          Level
	Time           uint32 // µs tick
	Parity         Parity // parity held before this edge
	LastChange     uint32
	HaveLastChange bool
}

// FieldUpdate describes how an edge changes the field-line group.
type FieldUpdate struct {
	Record     bool
	Into       Parity // the phase that just ended
	DurationUs uint32
	Parity     Parity
	Time       uint32
}

// EvaluateFieldEdge measures the phase that is ending and adopts the new
// parity. A high line means odd field.
func EvaluateFieldEdge(in FieldInput) FieldUpdate {
	u := FieldUpdate{Parity: Even, Time: in.Time}
	if in.Level == High {
		u.Parity = Odd
	}
	if in.HaveLastChange {
		u.Record = true
		u.Into = in.Parity
		u.DurationUs = in.Time - in.LastChange
	}
	return u
}

// SignalMonitor measures the sync and field lines. Its two handlers may run
// concurrently with each other and with the poll loop; each only writes its
// own group of SharedState and never blocks or allocates. A given handler
// must not be called concurrently with itself.
type SignalMonitor struct {
	state *SharedState
}

// NewSignalMonitor creates a monitor writing into state.
func NewSignalMonitor(state *SharedState) *SignalMonitor {
	return &SignalMonitor{state: state}
}

// OnSyncEdge handles a change on the sync line.
func (m *SignalMonitor) OnSyncEdge(level Level, nowUs uint32) {
	g := &m.state.sync
	u := EvaluateSyncEdge(SyncInput{
		Level:            level,
		Time:             nowUs,
		LastEdge:         g.lastEdge.Load(),
		HaveLastEdge:     g.haveEdge.Load(),
		DetectionEnabled: m.state.Settings.SyncDetectionEnabled(),
		LockEnabled:      m.state.Settings.LockEnabled(),
	})
	if u.Ignore {
		return
	}
	m.state.applySync(u)
}

// OnFieldEdge handles a change on the field line. It runs regardless of
// whether sync detection is enabled.
func (m *SignalMonitor) OnFieldEdge(level Level, nowUs uint32) {
	g := &m.state.field
	u := EvaluateFieldEdge(FieldInput{
		Level:          level,
		Time:           nowUs,
		Parity:         Parity(g.parity.Load()),
		LastChange:     g.lastChange.Load(),
		HaveLastChange: g.haveChange.Load(),
	})
	m.state.applyField(u)
}
