package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sync-tester/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"hz": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.3f", *v)
	},
	"onoff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sync Tester</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 45%; }
form { margin: 0.5em 0 1.5em; }
label { display: inline-block; margin-right: 1em; }
input[type=number] { width: 5em; }
.on, .ok, .connected { color: green; font-weight: bold; }
.off { color: #888; }
.bad, .disconnected { color: red; font-weight: bold; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Sync Tester<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Sync</h2>
<table>
<tr><th>Signal</th><td id="signal">{{.Signal}}</td></tr>
<tr><th>Rate</th><td id="rate" class="{{if eq .Rate "MISMATCH"}}bad{{end}}">{{.Rate}}</td></tr>
<tr><th>Measured rate (Hz)</th><td id="measured">{{hz .Sync.MeasuredRateHz}}</td></tr>
<tr><th>Period (&micro;s)</th><td id="period">{{.Sync.PeriodUs}}</td></tr>
<tr><th>Line active</th><td id="line-active">{{.Sync.LineActive}}</td></tr>
<tr><th>Ever detected</th><td id="detected">{{.Sync.Detected}}</td></tr>
<tr><th>Edges</th><td id="edges">{{.Sync.EdgeCount}}</td></tr>
<tr><th>Parity</th><td id="parity">{{.Field.Parity}}</td></tr>
<tr><th>Odd field (&micro;s)</th><td id="odd">{{.Field.OddFieldUs}}</td></tr>
<tr><th>Even field (&micro;s)</th><td id="even">{{.Field.EvenFieldUs}}</td></tr>
</table>

<form data-api="/api/sync">
<label><input type="checkbox" name="enabled" {{if .Sync.DetectionEnabled}}checked{{end}}> sync detection</label>
<button type="submit">Apply</button>
</form>

<h2>Fast sweep</h2>
<table>
<tr><th>Position</th><td id="position">{{.Animation.Position}}</td></tr>
</table>
<form data-api="/api/fast-sweep">
<label><input type="checkbox" name="enabled" {{if .Animation.FastSweepEnabled}}checked{{end}}> enabled</label>
<label>interval <input type="number" name="interval" min="1" value="{{.Animation.FastSweepIntervalMs}}"> ms</label>
<button type="submit">Apply</button>
</form>

<h2>Frame phase</h2>
<table>
<tr><th>Phase</th><td id="phase">{{.Animation.Phase}}</td></tr>
<tr><th>Half period</th><td id="half">{{.Animation.HalfPeriodMs}} ms</td></tr>
<tr><th>Lock resets</th><td id="lock-resets">{{.Animation.LockResets}}</td></tr>
</table>
<form data-api="/api/frame-phase">
<label><input type="checkbox" name="enabled" {{if .Animation.FramePhaseEnabled}}checked{{end}}> enabled</label>
<label>rate <input type="number" name="frame_rate" min="1" max="120" value="{{.Animation.FrameRateHz}}"> Hz</label><br>
<label><input type="checkbox" name="output" {{if .Animation.OutputEnabled}}checked{{end}}> aux output</label>
<label><input type="checkbox" name="lock" {{if .Animation.LockEnabled}}checked{{end}}> lock to sync</label>
<button type="submit">Apply</button>
</form>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .MQTT.Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .MQTT.Broker}}{{.MQTT.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Sync acquired</th><td>{{.Counts.Acquired}}</td></tr>
<tr><th>Sync lost</th><td>{{.Counts.Lost}}</td></tr>
<tr><th>Rate mismatch</th><td>{{.Counts.Mismatches}}</td></tr>
<tr><th>Rate match</th><td>{{.Counts.Matches}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime}}</td></tr>
<tr><th>Source</th><td>{{if .Config.Simulated}}simulated{{else}}gpio{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollUs}}&micro;s</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Loss timeout</th><td>{{.Config.LossTimeoutMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/api/status">JSON</a></p>
<p id="last-event"></p>

<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, v) { var el = document.getElementById(id); if (el) el.textContent = v; }

  document.querySelectorAll("form[data-api]").forEach(function(f) {
    f.addEventListener("submit", function(e) {
      e.preventDefault();
      var body = new URLSearchParams();
      f.querySelectorAll("input").forEach(function(i) {
        body.append(i.name, i.type === "checkbox" ? String(i.checked) : i.value);
      });
      fetch(f.dataset.api, { method: "POST", body: body });
    });
  });

  function render(s) {
    set("signal", s.signal);
    set("rate", s.rate);
    document.getElementById("rate").className = s.rate === "MISMATCH" ? "bad" : "";
    set("measured", s.sync.measured_rate_hz === null ? "n/a" : s.sync.measured_rate_hz.toFixed(3));
    set("period", s.sync.period_us);
    set("line-active", s.sync.line_active);
    set("detected", s.sync.detected);
    set("edges", s.sync.edge_count);
    set("parity", s.field.parity);
    set("odd", s.field.odd_field_us);
    set("even", s.field.even_field_us);
    set("position", s.animation.position);
    set("phase", s.animation.phase);
    set("half", s.animation.half_period_ms + " ms");
    set("lock-resets", s.animation.lock_resets);
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/api/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 2000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type === "status") render(msg.status);
        if (msg.type === "event") set("last-event", msg.event.timestamp + " " + msg.event.event);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template needs Uptime as a field, not a method.
	data := struct {
		status.StatusInner
		Uptime time.Duration
	}{
		StatusInner: status.Build(snap).Status,
		Uptime:      snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
