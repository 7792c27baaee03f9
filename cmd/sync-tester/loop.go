package main

import (
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/mqtt"
	"github.com/sweeney/sync-tester/internal/status"
)

// loop holds what runLoop reads and writes. Time and ticks are injected so
// tests can drive it sample by sample.
type loop struct {
	core       func() logic.Status
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	onEvent    func(logic.Event) // may be nil

	debounce    time.Duration
	lossTimeout time.Duration
	heartbeat   time.Duration

	now    func() time.Time
	tick   <-chan time.Time
	sig    <-chan os.Signal
	logger *zap.SugaredLogger
}

func runLoop(l loop) error {
	startTime := l.now()
	watcher := logic.NewSyncWatcher(l.debounce, l.lossTimeout, startTime)

	for {
		select {
		case s := <-l.sig:
			l.logger.Infow("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				l.refreshMQTT()
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				l.logger.Warnw("failed to publish shutdown event", "error", err)
			} else {
				l.logger.Infow("published shutdown event")
			}
			return nil

		case <-l.tick:
			t := l.now()
			st := l.core()

			events := watcher.Process(logic.WatchInput{
				Time:             t,
				EdgeCount:        st.EdgeCount,
				MeasuredRate:     st.MeasuredRate,
				FrameRateHz:      st.FrameRateHz,
				DetectionEnabled: st.SyncDetectionEnabled,
			})

			for _, event := range events {
				l.logger.Infow("event",
					"type", event.Type,
					"signal", event.Signal,
					"rate", event.Rate,
					"measured_hz", event.MeasuredRate.Hz,
					"configured_hz", event.FrameRateHz,
				)
				if err := l.publisher.Publish(event); err != nil {
					// Don't crash on publish failure
					l.logger.Warnw("publish error", "error", err)
				}
				if l.onEvent != nil {
					l.onEvent(event)
				}
			}

			if l.tracker != nil {
				signal, rate := watcher.CurrentState()
				l.tracker.Update(signal, rate, watcher.IsBaselined(), watcher.EventCountsSnapshot())
				l.refreshMQTT()
			}

			if !watcher.IsBaselined() {
				continue
			}

			if hb := watcher.CheckHeartbeat(t, l.heartbeat); hb != nil {
				l.logger.Infow("heartbeat",
					"uptime", hb.Uptime,
					"sync_acquired", hb.Counts.Acquired,
					"sync_lost", hb.Counts.Lost,
					"rate_mismatch", hb.Counts.Mismatches,
					"rate_match", hb.Counts.Matches,
				)
				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if l.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						l.tracker.SetNetwork(net)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					l.logger.Warnw("heartbeat publish error", "error", err)
				}
			}
		}
	}
}

func (l loop) refreshMQTT() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}
