package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sweeney/sync-tester/internal/gpio"
	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/mqtt"
	"github.com/sweeney/sync-tester/internal/sim"
	"github.com/sweeney/sync-tester/internal/status"
	"github.com/sweeney/sync-tester/internal/web"
)

var benchStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const sampleEvery = 100 * time.Millisecond

// bench wires the whole daemon with fakes at the edges and runs it on a
// simulated timeline: edges are delivered, the poll loop runs every
// millisecond and the watcher samples every 100ms.
type bench struct {
	settings *logic.Settings
	ring     *gpio.FakeRing
	core     *logic.Controller
	watcher  *logic.SyncWatcher
	pub      *mqtt.FakePublisher
	tracker  *status.Tracker
	srv      *web.Server
	http     *httptest.Server

	elapsed         time.Duration
	publishFailures int
}

func newBench(t *testing.T) *bench {
	t.Helper()
	settings := logic.NewSettings()
	ring := gpio.NewFakeRing()
	core := logic.NewController(settings, ring)
	tracker := status.NewTracker(benchStart, status.Config{
		DebounceMs:    250,
		LossTimeoutMs: 500,
		Broker:        "tcp://test:1883",
	}, core.Status)
	srv := web.New(":0", tracker, settings, web.Options{StreamInterval: time.Hour})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &bench{
		settings: settings,
		ring:     ring,
		core:     core,
		watcher:  logic.NewSyncWatcher(250*time.Millisecond, 500*time.Millisecond, benchStart),
		pub:      mqtt.NewFakePublisher(),
		tracker:  tracker,
		srv:      srv,
		http:     ts,
	}
}

// silence advances the timeline by d with no edges.
func (b *bench) silence(d time.Duration) {
	b.advance(d, nil)
}

// signal advances the timeline by d while a sync signal at rateHz arrives.
func (b *bench) signal(d time.Duration, rateHz float64) int {
	frames := int(d / sim.Period(rateHz))
	b.advance(d, sim.Schedule(rateHz, sim.DefaultPulse, frames))
	return frames
}

func (b *bench) advance(d time.Duration, edges []sim.Edge) {
	runStart := b.elapsed
	startUs := uint32(runStart.Microseconds())
	next := 0
	for step := time.Duration(0); step < d; step += time.Millisecond {
		var batch []sim.Edge
		for next < len(edges) && edges[next].At < step+time.Millisecond {
			batch = append(batch, edges[next])
			next++
		}
		sim.Replay(b.core.Monitor, batch, startUs)

		b.elapsed = runStart + step
		b.core.Poll(uint32(b.elapsed.Milliseconds()))
		if b.elapsed%sampleEvery == 0 {
			b.sample()
		}
	}
	b.elapsed = runStart + d
}

func (b *bench) sample() {
	now := benchStart.Add(b.elapsed)
	st := b.core.Status()
	for _, ev := range b.watcher.Process(logic.WatchInput{
		Time:             now,
		EdgeCount:        st.EdgeCount,
		MeasuredRate:     st.MeasuredRate,
		FrameRateHz:      st.FrameRateHz,
		DetectionEnabled: st.SyncDetectionEnabled,
	}) {
		if err := b.pub.Publish(ev); err != nil {
			b.publishFailures++
		}
		b.srv.PublishEvent(ev)
	}
	signal, rate := b.watcher.CurrentState()
	b.tracker.Update(signal, rate, b.watcher.IsBaselined(), b.watcher.EventCountsSnapshot())
}

func (b *bench) events() []string {
	var out []string
	for _, ev := range b.pub.Events() {
		out = append(out, string(ev.Type))
	}
	return out
}

func (b *bench) status(t *testing.T) status.StatusInner {
	t.Helper()
	resp, err := http.Get(b.http.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	return sj.Status
}

func (b *bench) post(t *testing.T, path string, values url.Values) {
	t.Helper()
	resp, err := http.PostForm(b.http.URL+path, values)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestIntegrationSyncAcquiredAtConfiguredRate runs a matching signal from
// edge delivery through to MQTT and the status API.
func TestIntegrationSyncAcquiredAtConfiguredRate(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)

	b.silence(500 * time.Millisecond)
	require.True(t, b.watcher.IsBaselined())
	assert.Empty(t, b.events(), "no events during baseline")

	b.signal(time.Second, 25)
	assert.Equal(t, []string{"SYNC_ACQUIRED"}, b.events())

	s := b.status(t)
	assert.Equal(t, "PRESENT", s.Signal)
	assert.Equal(t, "MATCH", s.Rate)
	require.NotNil(t, s.Sync.MeasuredRateHz)
	assert.Equal(t, 25.0, *s.Sync.MeasuredRateHz)
	assert.Equal(t, uint32(40000), s.Sync.PeriodUs)
	assert.False(t, s.Sync.RateMismatch)
	assert.Equal(t, 1, s.Counts.Acquired)
}

func TestIntegrationNoEventsAtStartup(t *testing.T) {
	b := newBench(t)
	b.signal(400*time.Millisecond, 24)

	// The watcher baselines with the signal already present.
	assert.True(t, b.watcher.IsBaselined())
	assert.Empty(t, b.events())
	assert.Equal(t, "PRESENT", b.status(t).Signal)
}

func TestIntegrationRateMismatchFixedFromWeb(t *testing.T) {
	b := newBench(t)
	b.silence(500 * time.Millisecond)

	// Default configured rate is 24 Hz; the source runs at 25.
	b.signal(time.Second, 25)
	assert.Equal(t, []string{"SYNC_ACQUIRED", "RATE_MISMATCH"}, b.events())
	assert.True(t, b.status(t).Sync.RateMismatch)

	b.post(t, "/api/frame-phase", url.Values{"frame_rate": {"25"}})
	b.signal(time.Second, 25)
	assert.Equal(t, []string{"SYNC_ACQUIRED", "RATE_MISMATCH", "RATE_MATCH"}, b.events())

	var p mqtt.Payload
	require.NoError(t, json.Unmarshal(b.pub.Payloads()[2], &p))
	assert.Equal(t, "RATE_MATCH", p.Sync.Event)
	assert.Equal(t, 25, p.Sync.ConfiguredHz)
	require.NotNil(t, p.Sync.MeasuredHz)
	assert.Equal(t, 25.0, *p.Sync.MeasuredHz)
}

func TestIntegrationNTSCRateMatches30(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(30)
	b.silence(500 * time.Millisecond)

	// 29.97 Hz is inside the tolerance of 30.
	b.signal(time.Second, 29.97)
	assert.Equal(t, []string{"SYNC_ACQUIRED"}, b.events())

	s := b.status(t)
	require.NotNil(t, s.Sync.MeasuredRateHz)
	assert.InDelta(t, 29.97, *s.Sync.MeasuredRateHz, 0.01)
}

func TestIntegrationSyncLostAfterTimeout(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)
	b.silence(500 * time.Millisecond)
	b.signal(time.Second, 25)

	// Below the loss timeout plus debounce nothing changes.
	b.silence(600 * time.Millisecond)
	assert.Equal(t, []string{"SYNC_ACQUIRED"}, b.events())

	b.silence(400 * time.Millisecond)
	assert.Equal(t, []string{"SYNC_ACQUIRED", "SYNC_LOST"}, b.events())

	s := b.status(t)
	assert.Equal(t, "ABSENT", s.Signal)
	assert.Equal(t, 1, s.Counts.Lost)
	// The last measurement is held after loss.
	require.NotNil(t, s.Sync.MeasuredRateHz)
	assert.Equal(t, 25.0, *s.Sync.MeasuredRateHz)
}

func TestIntegrationDetectionDisabledFromWeb(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)
	b.silence(500 * time.Millisecond)
	b.signal(time.Second, 25)
	edges := b.status(t).Sync.EdgeCount

	b.post(t, "/api/sync", url.Values{"enabled": {"false"}})
	b.signal(time.Second, 25)

	assert.Equal(t, []string{"SYNC_ACQUIRED", "SYNC_LOST"}, b.events())
	s := b.status(t)
	assert.False(t, s.Sync.DetectionEnabled)
	assert.Equal(t, edges, s.Sync.EdgeCount, "edges ignored while detection is off")
}

func TestIntegrationFieldParity(t *testing.T) {
	b := newBench(t)
	frames := b.signal(400*time.Millisecond, 25)
	require.Equal(t, 10, frames)

	s := b.status(t)
	// Ten field flips from low: the last frame is even.
	assert.Equal(t, "EVEN", s.Field.Parity)
	assert.Equal(t, uint32(40000), s.Field.OddFieldUs)
	assert.Equal(t, uint32(40000), s.Field.EvenFieldUs)
}

func TestIntegrationLockResetsOncePerFrame(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)
	b.post(t, "/api/frame-phase", url.Values{"lock": {"true"}, "output": {"true"}})

	frames := b.signal(time.Second, 25)
	assert.Equal(t, uint32(frames), b.core.LockResets())
	assert.Equal(t, uint32(frames), b.status(t).Animation.LockResets)

	// The last reset was 40ms before the end; pair A was shown half a
	// period later.
	assert.Equal(t, "PAIR_B", b.status(t).Animation.Phase)
	assert.True(t, b.ring.Aux(), "aux went high for pair A after the last reset")
}

func TestIntegrationNoLockWithoutFlag(t *testing.T) {
	b := newBench(t)
	b.signal(time.Second, 25)
	assert.Zero(t, b.core.LockResets())
}

func TestIntegrationPublishFailureDoesNotStopStatus(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)
	b.pub.PublishError = assert.AnError

	b.silence(500 * time.Millisecond)
	b.signal(time.Second, 25)

	assert.Empty(t, b.events())
	assert.Equal(t, 1, b.publishFailures)
	s := b.status(t)
	assert.Equal(t, "PRESENT", s.Signal)
	assert.Equal(t, 1, s.Counts.Acquired)
}

func TestIntegrationStreamDeliversEvents(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(b.http.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first web.StreamMessage
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.Equal(t, "status", first.Type)

	// The stream subscribes before its first frame.
	b.silence(500 * time.Millisecond)
	b.signal(time.Second, 25)

	var msg web.StreamMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, "event", msg.Type)
	assert.Equal(t, "SYNC_ACQUIRED", msg.Event.Event)
	assert.Equal(t, "PRESENT", msg.Event.Signal)
}

func TestIntegrationStartupAndHeartbeatPayloads(t *testing.T) {
	b := newBench(t)
	b.settings.SetFrameRate(25)
	b.tracker.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "10.0.0.5", Status: "connected"})

	snap := b.tracker.Snapshot()
	require.NoError(t, b.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}))

	b.silence(500 * time.Millisecond)
	b.signal(time.Second, 25)
	hb := b.watcher.CheckHeartbeat(benchStart.Add(b.elapsed), time.Second)
	require.NotNil(t, hb)
	require.NoError(t, b.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  hb.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(b.tracker.Snapshot(), "HEARTBEAT", ""),
	}))

	payloads := b.pub.SystemPayloads()
	require.Len(t, payloads, 2)

	var startup, heartbeat status.StatusJSON
	require.NoError(t, json.Unmarshal(payloads[0], &startup))
	require.NoError(t, json.Unmarshal(payloads[1], &heartbeat))

	assert.Equal(t, "STARTUP", startup.Status.Event)
	assert.False(t, startup.Status.Ready)
	assert.Nil(t, startup.Status.Sync.MeasuredRateHz)
	require.NotNil(t, startup.Status.Network)
	assert.Equal(t, "10.0.0.5", startup.Status.Network.IP)

	assert.Equal(t, "HEARTBEAT", heartbeat.Status.Event)
	assert.True(t, heartbeat.Status.Ready)
	assert.Equal(t, 1, heartbeat.Status.Counts.Acquired)
	require.NotNil(t, heartbeat.Status.Sync.MeasuredRateHz)
	assert.Equal(t, 25.0, *heartbeat.Status.Sync.MeasuredRateHz)
}
