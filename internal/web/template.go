package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/pump-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"fixed": func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	},
}).Parse(indexHTML))

// formatUptime renders d as e.g. "2d 3h 4m 5s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
	}
	out := ""
	for _, p := range parts {
		if p.n > 0 || out != "" {
			out += fmt.Sprintf("%d%s ", p.n, p.unit)
		}
	}
	return out + fmt.Sprintf("%ds", secs%60)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Pump Monitor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.sampling { color: green; font-weight: bold; }
.idle { color: #888; }
.fault { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Pump Monitor</h1>

<h2>Cycle</h2>
<table>
<tr><th>State</th><td id="state" class="{{if eq (printf "%s" .State) "SAMPLING"}}sampling{{else}}idle{{end}}">{{.State}}</td></tr>
<tr><th>Cycle</th><td>{{.Cycle}}</td></tr>
<tr><th>Last cycle</th><td>{{.LastCycleMs}}ms</td></tr>
<tr><th>Window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>Cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th>Pump</th><th>Windows</th><th>Pulses</th><th>Volume (L)</th><th>Rate (L/min)</th><th>Total (L)</th></tr>
{{range .Channels}}<tr><td>{{.Name}}</td><td>{{.Windows}}</td><td>{{.Last.Pulses}}</td><td>{{fixed .Last.Volume}}</td><td>{{fixed .Last.Rate}}</td><td>{{fixed .Last.TotalVolume}}</td></tr>
{{end}}</table>

<h2>Faults</h2>
<table>
<tr><th>Actuator</th><td{{if .Faults.Actuator}} class="fault"{{end}}>{{.Faults.Actuator}}</td></tr>
<tr><th>Sink</th><td{{if .Faults.Sink}} class="fault"{{end}}>{{.Faults.Sink}}</td></tr>
{{if .Faults.LastError}}<tr><th>Last</th><td>{{.Faults.LastError}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Relays</th><td>{{range $i, $r := .Config.Relays}}{{if $i}}, {{end}}{{$r}}{{end}}</td></tr>
<tr><th>Data</th><td>{{.Config.DataDir}}</td></tr>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{.Config.Broker}} ({{if .MQTTConnected}}connected{{else}}disconnected{{end}})</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
