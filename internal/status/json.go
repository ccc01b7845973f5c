package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string        `json:"state"`
	StateSince    string        `json:"state_since"`
	Cycle         int           `json:"cycle"`
	LastCycleMs   int64         `json:"last_cycle_ms"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Channels      []ChannelJSON `json:"channels"`
	Faults        FaultsJSON    `json:"faults"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is the JSON representation of one channel's latest window.
type ChannelJSON struct {
	Name        string  `json:"name"`
	Windows     int     `json:"windows"`
	LastEnd     string  `json:"last_end,omitempty"`
	Pulses      uint64  `json:"pulses"`
	Volume      float64 `json:"volume"`
	FlowRate    float64 `json:"flow_rate"`
	TotalVolume float64 `json:"total_volume"`
}

// FaultsJSON is the JSON representation of fault counts.
type FaultsJSON struct {
	Actuator  int    `json:"actuator"`
	Sink      int    `json:"sink"`
	LastError string `json:"last_error,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	WindowMs   int64    `json:"window_ms"`
	CooldownMs int64    `json:"cooldown_ms"`
	Relays     []string `json:"relays"`
	Broker     string   `json:"broker,omitempty"`
	HTTPAddr   string   `json:"http_addr"`
	DataDir    string   `json:"data_dir"`
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, c := range snap.Channels {
		channels[i] = ChannelJSON{
			Name:        c.Name,
			Windows:     c.Windows,
			Pulses:      c.Last.Pulses,
			Volume:      c.Last.Volume,
			FlowRate:    c.Last.Rate,
			TotalVolume: c.Last.TotalVolume,
		}
		if c.Windows > 0 {
			channels[i].LastEnd = c.Last.End.UTC().Format(time.RFC3339)
		}
	}

	relays := snap.Config.Relays
	if relays == nil {
		relays = []string{}
	}

	return StatusInner{
		State:         string(snap.State),
		StateSince:    snap.StateSince.UTC().Format(time.RFC3339),
		Cycle:         snap.Cycle,
		LastCycleMs:   snap.LastCycleMs,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Channels:      channels,
		Faults: FaultsJSON{
			Actuator:  snap.Faults.Actuator,
			Sink:      snap.Faults.Sink,
			LastError: snap.Faults.LastError,
		},
		Config: ConfigJSON{
			WindowMs:   snap.Config.WindowMs,
			CooldownMs: snap.Config.CooldownMs,
			Relays:     relays,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
			DataDir:    snap.Config.DataDir,
		},
	}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
