//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/sync-tester/internal/logic"
)

// RealInputs watches the sync and field lines using the Linux GPIO character
// device. Each line delivers edges from its own goroutine.
type RealInputs struct {
	chip  *gpiocdev.Chip
	sync  *gpiocdev.Line
	field *gpiocdev.Line
}

// NewRealInputs requests both input lines with pull-ups and edge detection on
// both edges, forwarding every event to sink. No debounce is applied.
func NewRealInputs(chipName string, pinSync, pinField int, sink EdgeSink) (*RealInputs, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	syncLine, err := chip.RequestLine(pinSync,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			sink.OnSyncEdge(levelOf(evt), logic.MicrosFromDuration(evt.Timestamp))
		}))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sync pin %d: %w", pinSync, err)
	}

	fieldLine, err := chip.RequestLine(pinField,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			sink.OnFieldEdge(levelOf(evt), logic.MicrosFromDuration(evt.Timestamp))
		}))
	if err != nil {
		syncLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request field pin %d: %w", pinField, err)
	}

	return &RealInputs{
		chip:  chip,
		sync:  syncLine,
		field: fieldLine,
	}, nil
}

// levelOf maps an edge to the level the line settled at.
func levelOf(evt gpiocdev.LineEvent) logic.Level {
	if evt.Type == gpiocdev.LineEventRisingEdge {
		return logic.High
	}
	return logic.Low
}

// Levels reads the current raw level of both lines.
func (r *RealInputs) Levels() (logic.Level, logic.Level, error) {
	syncRaw, err := r.sync.Value()
	if err != nil {
		return logic.Low, logic.Low, fmt.Errorf("read sync pin: %w", err)
	}
	fieldRaw, err := r.field.Value()
	if err != nil {
		return logic.Low, logic.Low, fmt.Errorf("read field pin: %w", err)
	}
	return rawLevel(syncRaw), rawLevel(fieldRaw), nil
}

func rawLevel(v int) logic.Level {
	if v != 0 {
		return logic.High
	}
	return logic.Low
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing so attached hardware sees a known state across restarts.
func (r *RealInputs) Close() error {
	var errs []error
	for name, l := range map[string]*gpiocdev.Line{"sync": r.sync, "field": r.field} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRing drives the ring and aux output lines. Set and SetAux are called
// only from the poll loop; unchanged values are not rewritten.
type RealRing struct {
	chip  *gpiocdev.Chip
	lines [logic.RingSize]*gpiocdev.Line
	aux   *gpiocdev.Line

	state    [logic.RingSize]bool
	auxState bool
	errs     atomic.Uint64
}

// NewRealRing requests the ring lines and the aux line as outputs, all low.
func NewRealRing(chipName string, pins [logic.RingSize]int, pinAux int) (*RealRing, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealRing{chip: chip}
	for i, pin := range pins {
		l, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request ring pin %d (position %d): %w", pin, i, err)
		}
		r.lines[i] = l
	}

	aux, err := chip.RequestLine(pinAux, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request aux pin %d: %w", pinAux, err)
	}
	r.aux = aux

	return r, nil
}

// Set drives one ring position.
func (r *RealRing) Set(pos logic.RingPosition, on bool) {
	if r.state[pos] == on {
		return
	}
	if err := r.lines[pos].SetValue(boolToValue(on)); err != nil {
		r.errs.Add(1)
		return
	}
	r.state[pos] = on
}

// SetAux drives the aux output.
func (r *RealRing) SetAux(high bool) {
	if r.auxState == high {
		return
	}
	if err := r.aux.SetValue(boolToValue(high)); err != nil {
		r.errs.Add(1)
		return
	}
	r.auxState = high
}

// Errors returns how many line writes have failed.
func (r *RealRing) Errors() uint64 {
	return r.errs.Load()
}

// Close drives every output low, returns the lines to input with pull-down
// and releases them.
func (r *RealRing) Close() error {
	var errs []error
	release := func(name string, l *gpiocdev.Line) {
		if l == nil {
			return
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive %s low: %w", name, err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	for i, l := range r.lines {
		release(fmt.Sprintf("ring position %d", i), l)
	}
	release("aux", r.aux)
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
