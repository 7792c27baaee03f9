package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/sync-tester/internal/logic"
)

// FakeInputs is a test double that returns scripted line levels.
type FakeInputs struct {
	// Samples contains scripted levels to return.
	// Each call to Levels() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Levels()
	ReadError error
}

// Sample represents a single reading of both input lines.
type Sample struct {
	Sync  logic.Level
	Field logic.Level
}

// NewFakeInputs creates a FakeInputs with the given samples.
func NewFakeInputs(samples []Sample) *FakeInputs {
	return &FakeInputs{Samples: samples}
}

// Levels returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInputs) Levels() (logic.Level, logic.Level, error) {
	if f.ReadError != nil {
		return logic.Low, logic.Low, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.Low, logic.Low, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.Sync, sample.Field, nil
}

// Close marks the inputs as closed.
func (f *FakeInputs) Close() error {
	f.Closed = true
	return nil
}

// FakeRing records output line state. It is safe for concurrent use so a
// simulated daemon can render it while the poll loop writes.
type FakeRing struct {
	mu     sync.Mutex
	on     [logic.RingSize]bool
	aux    bool
	writes int

	auxHistory []bool
	closed     bool
}

// maxAuxHistory bounds AuxHistory so a long simulated run stays small.
const maxAuxHistory = 256

// NewFakeRing creates a dark FakeRing.
func NewFakeRing() *FakeRing {
	return &FakeRing{}
}

// Set records one ring position.
func (f *FakeRing) Set(pos logic.RingPosition, on bool) {
	f.mu.Lock()
	f.on[pos] = on
	f.writes++
	f.mu.Unlock()
}

// SetAux records the aux output.
func (f *FakeRing) SetAux(high bool) {
	f.mu.Lock()
	f.aux = high
	if len(f.auxHistory) == maxAuxHistory {
		f.auxHistory = append(f.auxHistory[:0], f.auxHistory[1:]...)
	}
	f.auxHistory = append(f.auxHistory, high)
	f.mu.Unlock()
}

// Errors always reports zero failed writes.
func (f *FakeRing) Errors() uint64 { return 0 }

// Close turns everything off and marks the ring closed.
func (f *FakeRing) Close() error {
	f.mu.Lock()
	f.on = [logic.RingSize]bool{}
	f.aux = false
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Lit returns the positions currently on, in index order.
func (f *FakeRing) Lit() []logic.RingPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []logic.RingPosition
	for i, on := range f.on {
		if on {
			out = append(out, logic.RingPosition(i))
		}
	}
	return out
}

// Aux returns the current aux output.
func (f *FakeRing) Aux() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aux
}

// AuxHistory returns a copy of the most recent aux writes, oldest first.
func (f *FakeRing) AuxHistory() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.auxHistory...)
}

// Writes returns how many ring writes have been recorded.
func (f *FakeRing) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Closed reports whether Close was called.
func (f *FakeRing) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeEdges records edges delivered to it, for tests of edge producers.
type FakeEdges struct {
	mu    sync.Mutex
	Sync  []Edge
	Field []Edge
}

// Edge is one recorded edge.
type Edge struct {
	Level logic.Level
	Us    uint32
}

func (f *FakeEdges) OnSyncEdge(level logic.Level, nowUs uint32) {
	f.mu.Lock()
	f.Sync = append(f.Sync, Edge{Level: level, Us: nowUs})
	f.mu.Unlock()
}

func (f *FakeEdges) OnFieldEdge(level logic.Level, nowUs uint32) {
	f.mu.Lock()
	f.Field = append(f.Field, Edge{Level: level, Us: nowUs})
	f.mu.Unlock()
}

// Snapshot returns copies of the recorded edges.
func (f *FakeEdges) Snapshot() (syncEdges, fieldEdges []Edge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Edge(nil), f.Sync...), append([]Edge(nil), f.Field...)
}
