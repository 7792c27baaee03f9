package logic

import "time"

// debounced tracks one channel's stable value and a pending candidate.
type debounced[S comparable] struct {
	Stable       S
	Pending      S
	HasPending   bool
	PendingSince time.Time
	Baselined    bool
}

// observe feeds one raw sample. It returns true when a baselined channel
// changes its stable value.
func (c *debounced[S]) observe(v S, now time.Time, debounce time.Duration) bool {
	if !c.Baselined {
		if !c.HasPending || c.Pending != v {
			// Start observing, or restart if the value moved during baseline
			c.Pending = v
			c.HasPending = true
			c.PendingSince = now
		}
		if now.Sub(c.PendingSince) >= debounce {
			c.Stable = v
			c.Baselined = true
			c.HasPending = false
		}
		return false
	}

	if v == c.Stable {
		c.HasPending = false
		return false
	}

	if !c.HasPending || c.Pending != v {
		c.Pending = v
		c.HasPending = true
		c.PendingSince = now
		return false
	}

	if now.Sub(c.PendingSince) >= debounce {
		c.Stable = v
		c.HasPending = false
		return true
	}
	return false
}

// SyncWatcher turns periodic status samples into debounced transitions of
// sync presence and rate agreement.
type SyncWatcher struct {
	debounce    time.Duration
	lossTimeout time.Duration

	signal debounced[SignalState]
	rate   debounced[RateState]

	lastEdges    uint32
	lastEdgeSeen time.Time
	seenEdge     bool

	baselined     bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewSyncWatcher creates a watcher. A signal counts as lost once no edge has
// arrived for lossTimeout. The startTime is used for heartbeat uptime.
func NewSyncWatcher(debounce, lossTimeout time.Duration, startTime time.Time) *SyncWatcher {
	return &SyncWatcher{
		debounce:      debounce,
		lossTimeout:   lossTimeout,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new sample and returns any events that should be emitted.
// Events are only returned after baseline is established and on transitions.
func (w *SyncWatcher) Process(in WatchInput) []Event {
	signal := w.rawSignal(in)
	rate := w.rawRate(in, signal)

	signalChanged := w.signal.observe(signal, in.Time, w.debounce)
	rateChanged := w.rate.observe(rate, in.Time, w.debounce)

	if !w.baselined {
		if w.signal.Baselined && w.rate.Baselined {
			w.baselined = true
		}
		return nil
	}

	var events []Event
	emit := func(t EventType) {
		events = append(events, Event{
			Timestamp:    in.Time,
			Type:         t,
			Signal:       w.signal.Stable,
			Rate:         w.rate.Stable,
			MeasuredRate: in.MeasuredRate,
			FrameRateHz:  in.FrameRateHz,
		})
	}

	// Signal first, then rate, if both change on the same sample
	if signalChanged {
		if w.signal.Stable == SignalPresent {
			emit(EventSyncAcquired)
			w.eventCounts.Acquired++
		} else {
			emit(EventSyncLost)
			w.eventCounts.Lost++
		}
	}
	if rateChanged {
		if w.rate.Stable == RateMismatched {
			emit(EventRateMismatch)
			w.eventCounts.Mismatches++
		} else {
			emit(EventRateMatch)
			w.eventCounts.Matches++
		}
	}
	return events
}

func (w *SyncWatcher) rawSignal(in WatchInput) SignalState {
	if !in.DetectionEnabled {
		return SignalAbsent
	}
	if in.EdgeCount != w.lastEdges {
		w.lastEdges = in.EdgeCount
		w.lastEdgeSeen = in.Time
		w.seenEdge = true
	}
	if w.seenEdge && in.Time.Sub(w.lastEdgeSeen) < w.lossTimeout {
		return SignalPresent
	}
	return SignalAbsent
}

// rawRate only judges the rate while the signal is present with a valid
// measurement; otherwise the channel holds its value.
func (w *SyncWatcher) rawRate(in WatchInput, signal SignalState) RateState {
	if signal == SignalPresent && in.MeasuredRate.Valid {
		if RateMismatch(in.MeasuredRate, in.FrameRateHz) {
			return RateMismatched
		}
		return RateMatch
	}
	if w.rate.Baselined {
		return w.rate.Stable
	}
	return RateMatch
}

// IsBaselined returns whether the watcher has established a baseline.
func (w *SyncWatcher) IsBaselined() bool {
	return w.baselined
}

// CurrentState returns the current stable states.
func (w *SyncWatcher) CurrentState() (SignalState, RateState) {
	return w.signal.Stable, w.rate.Stable
}

// EventCountsSnapshot returns a copy of the event counters.
func (w *SyncWatcher) EventCountsSnapshot() EventCounts {
	return w.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (w *SyncWatcher) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !w.baselined {
		return nil
	}

	if now.Sub(w.lastHeartbeat) < interval {
		return nil
	}

	w.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(w.startTime),
		Counts:    w.eventCounts,
	}
}
