// Package mqtt publishes flow results and daemon lifecycle events to an MQTT
// broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// DefaultTopic is the MQTT topic for per-window results.
const DefaultTopic = "pumps/flow/results"

// SystemTopic returns the lifecycle topic for a results topic.
func SystemTopic(topic string) string {
	return topic + "/system"
}

// Publisher publishes results and lifecycle events.
type Publisher interface {
	// PublishResult sends one window result.
	// Returns error if publishing fails (should not crash the process).
	PublishResult(r flow.Result) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (STARTUP, SHUTDOWN).
type SystemEvent struct {
	Timestamp time.Time
	Event     string   // e.g., "STARTUP", "SHUTDOWN"
	Reason    string   // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Channels  []string // channel names (startup only)
	Cycles    int      // cycles started (shutdown only)
	Retained  bool
}

// ResultPayload is the JSON body of a result message. Field names match the
// CSV header.
type ResultPayload struct {
	Pump        string  `json:"pump"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	ElapsedMs   float64 `json:"elapsed_ms"`
	FlowRate    float64 `json:"flow_rate"`
	Volume      float64 `json:"volume"`
	TotalVolume float64 `json:"total_volume"`
	Pulses      uint64  `json:"pulses"`
}

// FormatResult creates the JSON payload for a result.
func FormatResult(r flow.Result) ([]byte, error) {
	return json.Marshal(ResultPayload{
		Pump:        r.Channel,
		Start:       r.Start.UTC().Format(time.RFC3339Nano),
		End:         r.End.UTC().Format(time.RFC3339Nano),
		ElapsedMs:   r.ElapsedMs,
		FlowRate:    r.Rate,
		Volume:      r.Volume,
		TotalVolume: r.TotalVolume,
		Pulses:      r.Pulses,
	})
}

// SystemPayload is the JSON body of a lifecycle message.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Reason    string   `json:"reason,omitempty"`
	Channels  []string `json:"channels,omitempty"`
	Cycles    int      `json:"cycles,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Channels:  event.Channels,
			Cycles:    event.Cycles,
		},
	})
}
