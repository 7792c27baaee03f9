// Package sim generates a synthetic sync and field signal so the daemon can
// run without a video source attached.
package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/sync-tester/internal/gpio"
	"github.com/sweeney/sync-tester/internal/logic"
)

// Line identifies which input an edge belongs to.
type Line string

const (
	LineSync  Line = "sync"
	LineField Line = "field"
)

// Edge is one scheduled transition, relative to the start of the run.
type Edge struct {
	At    time.Duration
	Line  Line
	Level logic.Level
}

// DefaultPulse is the sync pulse width.
const DefaultPulse = time.Millisecond

// Period returns the frame period for a rate.
func Period(rateHz float64) time.Duration {
	return time.Duration(float64(time.Second) / rateHz)
}

// Schedule lists the edges of n frames: each frame starts with the sync line
// falling and the field line flipping, and the sync line rises after pulse.
// The field line starts low, so the first frame is odd.
func Schedule(rateHz float64, pulse time.Duration, n int) []Edge {
	period := Period(rateHz)
	field := logic.Low
	edges := make([]Edge, 0, 3*n)
	for i := 0; i < n; i++ {
		start := time.Duration(i) * period
		field ^= 1
		edges = append(edges,
			Edge{At: start, Line: LineSync, Level: logic.Low},
			Edge{At: start, Line: LineField, Level: field},
			Edge{At: start + pulse, Line: LineSync, Level: logic.High},
		)
	}
	return edges
}

// Replay delivers edges to sink at startUs plus each edge's offset, without
// waiting. It is the deterministic counterpart of Source.Run.
func Replay(sink gpio.EdgeSink, edges []Edge, startUs uint32) {
	for _, e := range edges {
		deliver(sink, e.Line, e.Level, startUs+uint32(e.At.Microseconds()))
	}
}

func deliver(sink gpio.EdgeSink, line Line, level logic.Level, us uint32) {
	if line == LineSync {
		sink.OnSyncEdge(level, us)
		return
	}
	sink.OnFieldEdge(level, us)
}

// Source emits a live synthetic signal.
type Source struct {
	rateHz float64
	pulse  time.Duration
	clock  logic.Clock
	logger *zap.SugaredLogger
}

// NewSource creates a source at rateHz with the given pulse width, stamping
// edges with clock.
func NewSource(rateHz float64, pulse time.Duration, clock logic.Clock, logger *zap.SugaredLogger) (*Source, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("sim: rate must be positive, got %v", rateHz)
	}
	if pulse <= 0 || pulse >= Period(rateHz) {
		return nil, fmt.Errorf("sim: pulse %v must be inside the %v frame", pulse, Period(rateHz))
	}
	return &Source{rateHz: rateHz, pulse: pulse, clock: clock, logger: logger}, nil
}

// Run emits frames until ctx is done. Edges for both lines come from this
// goroutine, as each handler requires a single caller.
func (s *Source) Run(ctx context.Context, sink gpio.EdgeSink) error {
	period := Period(s.rateHz)
	s.logger.Infow("simulated sync running", "rate_hz", s.rateHz, "period", period, "pulse", s.pulse)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	pulse := time.NewTimer(s.pulse)
	pulse.Stop()
	defer pulse.Stop()

	field := logic.Low
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := s.clock.Micros()
			field ^= 1
			sink.OnSyncEdge(logic.Low, now)
			sink.OnFieldEdge(field, now)
			pulse.Reset(s.pulse)
		case <-pulse.C:
			sink.OnSyncEdge(logic.High, s.clock.Micros())
		}
	}
}
