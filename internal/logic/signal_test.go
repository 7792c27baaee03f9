package logic

import (
	"math"
	"sync"
	"testing"
)

func newTestMonitor() (*SignalMonitor, *SharedState) {
	state := NewSharedState(NewSettings())
	return NewSignalMonitor(state), state
}

func TestEvaluateSyncEdgeFirstEdgeHasNoPeriod(t *testing.T) {
	u := EvaluateSyncEdge(SyncInput{Level: Low, Time: 1000, DetectionEnabled: true})
	if !u.Edge || !u.Active {
		t.Fatalf("expected active edge, got %+v", u)
	}
	if u.Measured {
		t.Error("first edge should not produce a period")
	}
	if u.Trigger {
		t.Error("trigger should be off when lock is disabled")
	}
}

func TestEvaluateSyncEdgeDisabled(t *testing.T) {
	for _, level := range []Level{Low, High} {
		u := EvaluateSyncEdge(SyncInput{Level: level, Time: 5, DetectionEnabled: false, LockEnabled: true})
		if !u.Ignore {
			t.Errorf("level %s: expected edge to be ignored when detection is disabled", level)
		}
	}
}

func TestEvaluateSyncEdgeInactive(t *testing.T) {
	u := EvaluateSyncEdge(SyncInput{Level: High, Time: 5, LastEdge: 1, HaveLastEdge: true, DetectionEnabled: true, LockEnabled: true})
	if u.Active || u.Edge || u.Measured || u.Trigger {
		t.Errorf("inactive edge should only clear the active flag, got %+v", u)
	}
}

func TestEvaluateSyncEdgeWraparound(t *testing.T) {
	u := EvaluateSyncEdge(SyncInput{
		Level:            Low,
		Time:             1000,
		LastEdge:         math.MaxUint32 - 999,
		HaveLastEdge:     true,
		DetectionEnabled: true,
	})
	if !u.Measured || u.PeriodUs != 2000 {
		t.Errorf("expected period 2000 across wrap, got %+v", u)
	}
}

func TestSyncPeriodAndRate(t *testing.T) {
	m, state := newTestMonitor()

	m.OnSyncEdge(Low, 100_000)
	first := state.Measurement()
	if !first.Detected || !first.Active {
		t.Error("expected detected and active after first edge")
	}
	if first.Rate().Valid {
		t.Error("rate should be invalid before a period is measured")
	}

	m.OnSyncEdge(High, 101_000)
	m.OnSyncEdge(Low, 141_667)

	got := state.Measurement()
	if got.PeriodUs != 41_667 {
		t.Errorf("PeriodUs: got %d, want 41667", got.PeriodUs)
	}
	rate := got.Rate()
	if !rate.Valid {
		t.Fatal("expected valid rate")
	}
	if want := 1e6 / 41_667.0; math.Abs(rate.Hz-want) > 1e-9 {
		t.Errorf("rate: got %f, want %f", rate.Hz, want)
	}
	if got.LastEdgeUs != 141_667 {
		t.Errorf("LastEdgeUs: got %d", got.LastEdgeUs)
	}
	if got.Edges != 2 {
		t.Errorf("Edges: got %d, want 2", got.Edges)
	}
}

func TestSyncInactiveEdgeDoesNotChangeMeasurement(t *testing.T) {
	m, state := newTestMonitor()
	m.OnSyncEdge(Low, 0)
	m.OnSyncEdge(Low, 40_000)
	before := state.Measurement()

	m.OnSyncEdge(High, 45_000)
	m.OnSyncEdge(High, 46_000)

	after := state.Measurement()
	if after.PeriodUs != before.PeriodUs || after.LastEdgeUs != before.LastEdgeUs || after.Edges != before.Edges {
		t.Errorf("inactive edges changed measurement: before %+v after %+v", before, after)
	}
	if after.Active {
		t.Error("line should be inactive after high edge")
	}
	if !after.Detected {
		t.Error("detected flag should stay set")
	}
}

func TestSyncTimestampZeroIsAValidEdge(t *testing.T) {
	m, state := newTestMonitor()
	m.OnSyncEdge(Low, 0)
	m.OnSyncEdge(Low, 20_000)
	if got := state.Measurement().PeriodUs; got != 20_000 {
		t.Errorf("PeriodUs: got %d, want 20000", got)
	}
}

func TestSyncZeroPeriodIsNoMeasurement(t *testing.T) {
	m, state := newTestMonitor()
	m.OnSyncEdge(Low, 500)
	m.OnSyncEdge(Low, 500)
	if state.Measurement().Rate().Valid {
		t.Error("zero period must report no valid measurement")
	}
}

func TestSyncDetectionDisabledIgnoresEdges(t *testing.T) {
	m, state := newTestMonitor()
	state.Settings.SetSyncDetectionEnabled(false)
	state.Settings.SetLockEnabled(true)

	m.OnSyncEdge(Low, 100)
	m.OnSyncEdge(Low, 200)

	got := state.Measurement()
	if got.Detected || got.Edges != 0 || got.HaveEdge {
		t.Errorf("expected no measurement, got %+v", got)
	}
	if state.TriggerPending() {
		t.Error("trigger must not be set while detection is disabled")
	}
}

func TestSyncLockTrigger(t *testing.T) {
	m, state := newTestMonitor()
	m.OnSyncEdge(Low, 100)
	if state.TriggerPending() {
		t.Fatal("trigger set with lock disabled")
	}

	state.Settings.SetLockEnabled(true)
	m.OnSyncEdge(High, 150)
	if state.TriggerPending() {
		t.Fatal("inactive edge must not set trigger")
	}
	m.OnSyncEdge(Low, 200)
	m.OnSyncEdge(Low, 300)

	if !state.TakeTrigger() {
		t.Fatal("expected pending trigger")
	}
	if state.TakeTrigger() {
		t.Error("multiple sets must collapse into one pending trigger")
	}
}

func TestFieldDurationsAttributedToEndingPhase(t *testing.T) {
	m, state := newTestMonitor()

	// t1: first edge, parity flips to odd, no duration yet
	m.OnFieldEdge(High, 1_000)
	f := state.Field()
	if f.Parity != Odd {
		t.Errorf("parity after t1: got %s, want ODD", f.Parity)
	}
	if f.OddUs != 0 || f.EvenUs != 0 {
		t.Errorf("no duration expected after first edge, got %+v", f)
	}

	// t2: odd phase ends
	m.OnFieldEdge(Low, 21_000)
	f = state.Field()
	if f.Parity != Even {
		t.Errorf("parity after t2: got %s, want EVEN", f.Parity)
	}
	if f.OddUs != 20_000 {
		t.Errorf("OddUs after t2: got %d, want 20000", f.OddUs)
	}
	if f.EvenUs != 0 {
		t.Errorf("EvenUs after t2: got %d, want 0", f.EvenUs)
	}

	// t3: even phase ends
	m.OnFieldEdge(High, 41_500)
	f = state.Field()
	if f.Parity != Odd {
		t.Errorf("parity after t3: got %s, want ODD", f.Parity)
	}
	if f.EvenUs != 20_500 {
		t.Errorf("EvenUs after t3: got %d, want 20500", f.EvenUs)
	}
	if f.OddUs != 20_000 {
		t.Errorf("OddUs after t3: got %d, want 20000", f.OddUs)
	}
}

func TestFieldRunsWithDetectionDisabled(t *testing.T) {
	m, state := newTestMonitor()
	state.Settings.SetSyncDetectionEnabled(false)

	m.OnFieldEdge(High, 0)
	m.OnFieldEdge(Low, 16_683)

	if got := state.Field().OddUs; got != 16_683 {
		t.Errorf("OddUs: got %d, want 16683", got)
	}
}

func TestEvaluateFieldEdgeSameLevelTwice(t *testing.T) {
	// A glitch that reports the same level again still records a duration
	// against the held parity.
	u := EvaluateFieldEdge(FieldInput{Level: High, Time: 30, Parity: Odd, LastChange: 10, HaveLastChange: true})
	if !u.Record || u.Into != Odd || u.DurationUs != 20 || u.Parity != Odd {
		t.Errorf("unexpected update: %+v", u)
	}
}

// TestConcurrentHandlersAndReaders exercises both handlers and the reader
// concurrently; run with -race to check the shared-state discipline.
func TestConcurrentHandlersAndReaders(t *testing.T) {
	m, state := newTestMonitor()
	state.Settings.SetLockEnabled(true)

	const edges = 2000
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := uint32(1); i <= edges; i++ {
			m.OnSyncEdge(Low, i*1000)
			m.OnSyncEdge(High, i*1000+100)
		}
	}()
	go func() {
		defer wg.Done()
		for i := uint32(1); i <= edges; i++ {
			m.OnFieldEdge(Level(i&1), i*500)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < edges; i++ {
			got := state.Measurement()
			// A torn read would pair a period with the wrong timestamp.
			if got.Edges > 1 && got.PeriodUs != 1000 {
				t.Errorf("inconsistent measurement: %+v", got)
				return
			}
			state.Field()
			state.TakeTrigger()
		}
	}()
	wg.Wait()

	if got := state.Measurement().Edges; got != edges {
		t.Errorf("Edges: got %d, want %d", got, edges)
	}
	if got := state.Field().OddUs + state.Field().EvenUs; got != 1000 {
		t.Errorf("field durations: got total %d, want 1000", got)
	}
}
