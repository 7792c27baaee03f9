// Package termui renders a daemon status snapshot for the terminal.
package termui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/status"
)

const (
	litGlyph  = "●"
	darkGlyph = "○"
)

// clockCells places each clock hour (0 is 12 o'clock) on a 7x13 grid.
var clockCells = [logic.RingSize]struct{ row, col int }{
	{0, 6}, {1, 9}, {2, 11}, {3, 12}, {4, 11}, {5, 9},
	{6, 6}, {5, 3}, {4, 1}, {3, 0}, {2, 1}, {1, 3},
}

const ringRows = 7

// hourOf maps a ring position to its clock hour. Stepping the index down
// moves clockwise, so index 1 sits at 11 o'clock.
func hourOf(pos logic.RingPosition) int {
	return (logic.RingSize - int(pos)) % logic.RingSize
}

// LitPositions reports which ring positions the engine is driving, derived
// from the reported animation state.
func LitPositions(a status.AnimationJSON) [logic.RingSize]bool {
	var lit [logic.RingSize]bool
	if a.FastSweepEnabled && a.Position >= 0 && a.Position < logic.RingSize {
		lit[a.Position] = true
	}
	if a.FramePhaseEnabled {
		phase := logic.PairA
		if a.Phase == logic.PairB.String() {
			phase = logic.PairB
		}
		for _, p := range phase.Positions() {
			lit[p] = true
		}
	}
	return lit
}

// RenderRing draws the ring as a clock face.
func RenderRing(lit [logic.RingSize]bool) string {
	var rows [ringRows][]int
	byCell := map[[2]int]logic.RingPosition{}
	for pos := logic.RingPosition(0); pos < logic.RingSize; pos++ {
		c := clockCells[hourOf(pos)]
		rows[c.row] = append(rows[c.row], c.col)
		byCell[[2]int{c.row, c.col}] = pos
	}

	var b strings.Builder
	for r, cols := range rows {
		if len(cols) == 2 && cols[0] > cols[1] {
			cols[0], cols[1] = cols[1], cols[0]
		}
		at := 0
		for _, col := range cols {
			b.WriteString(strings.Repeat(" ", col-at))
			if lit[byCell[[2]int{r, col}]] {
				b.WriteString(litStyle.Render(litGlyph))
			} else {
				b.WriteString(darkStyle.Render(darkGlyph))
			}
			at = col + 1
		}
		if r < ringRows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func signalValue(s string) string {
	switch s {
	case string(logic.SignalPresent):
		return goodStyle.Render(s)
	case string(logic.SignalAbsent):
		return badStyle.Render(s)
	}
	return warnStyle.Render(s)
}

func rateValue(s string) string {
	switch s {
	case string(logic.RateMatch):
		return goodStyle.Render(s)
	case string(logic.RateMismatched):
		return badStyle.Render(s)
	}
	return warnStyle.Render(s)
}

func onOff(b bool) string {
	if b {
		return goodStyle.Render("on")
	}
	return darkStyle.Render("off")
}

func measured(v *float64) string {
	if v == nil {
		return darkStyle.Render("n/a")
	}
	return valueStyle.Render(fmt.Sprintf("%.3f Hz", *v))
}

// RenderMeasurements lists the sync measurement and animation settings.
func RenderMeasurements(s status.StatusInner) string {
	a, sy, f := s.Animation, s.Sync, s.Field

	mqtt := badStyle.Render("disconnected")
	if s.MQTT.Broker == "" {
		mqtt = darkStyle.Render("disabled")
	} else if s.MQTT.Connected {
		mqtt = goodStyle.Render("connected")
	}

	lines := []string{
		titleStyle.Render("Sync"),
		row("signal", signalValue(s.Signal)),
		row("rate", rateValue(s.Rate)),
		row("measured", measured(sy.MeasuredRateHz)),
		row("period", valueStyle.Render(fmt.Sprintf("%d µs", sy.PeriodUs))),
		row("edges", valueStyle.Render(fmt.Sprint(sy.EdgeCount))),
		row("detection", onOff(sy.DetectionEnabled)),
		row("parity", valueStyle.Render(f.Parity)),
		row("fields", valueStyle.Render(fmt.Sprintf("odd %d µs / even %d µs", f.OddFieldUs, f.EvenFieldUs))),
		"",
		titleStyle.Render("Animation"),
		row("fast sweep", onOff(a.FastSweepEnabled)+valueStyle.Render(fmt.Sprintf(" every %d ms", a.FastSweepIntervalMs))),
		row("frame phase", onOff(a.FramePhaseEnabled)+valueStyle.Render(fmt.Sprintf(" %d Hz (%d ms half)", a.FrameRateHz, a.HalfPeriodMs))),
		row("aux output", onOff(a.OutputEnabled)),
		row("lock", onOff(a.LockEnabled)+valueStyle.Render(fmt.Sprintf(" %d resets", a.LockResets))),
		"",
		row("mqtt", mqtt),
		row("uptime", valueStyle.Render(fmt.Sprintf("%ds", s.UptimeSeconds))),
	}
	return strings.Join(lines, "\n")
}

// Render draws the ring next to the measurements, each in its own panel.
func Render(s status.StatusInner) string {
	ring := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Ring"),
		"",
		RenderRing(LitPositions(s.Animation)),
		"",
		valueStyle.Render(fmt.Sprintf("pos %d  %s", s.Animation.Position, s.Animation.Phase)),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(ring),
		panelStyle.Render(RenderMeasurements(s)),
	)
}
