package mqtt

import (
	"strings"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

// StatusPrefix is the base of the retained hub status topics.
const StatusPrefix = "telemetryhub/status"

// Topics builds the hub's bus topics from configuration.
//
//	topics := mqtt.NewTopics(cfg.Bus.Topics)
//	topics.Action("thermo-01") // "telemetry/actions/thermo-01"
type Topics struct {
	device      string
	deviceState string
	event       string
	action      string
}

// NewTopics returns topic builders for the configured topic names.
// Trailing slashes are trimmed so per-device topics never contain "//".
func NewTopics(cfg config.BusTopicsConfig) Topics {
	trim := func(s string) string { return strings.TrimRight(s, "/") }
	return Topics{
		device:      trim(cfg.Device),
		deviceState: trim(cfg.DeviceState),
		event:       trim(cfg.Event),
		action:      trim(cfg.Action),
	}
}

// Devices returns the topic carrying device create, update and delete messages.
func (t Topics) Devices() string { return t.device }

// DeviceStates returns the topic carrying device state messages.
func (t Topics) DeviceStates() string { return t.deviceState }

// Events returns the topic carrying device events.
func (t Topics) Events() string { return t.event }

// Action returns the per-device action topic, keyed by physical id.
func (t Topics) Action(physicalID string) string {
	return t.action + "/" + physicalID
}

// AllActions returns a single-level wildcard over every device's action topic.
func (t Topics) AllActions() string {
	return t.action + "/+"
}

// ActionDevice extracts the physical id from a per-device action topic.
// It returns false when topic is not below the action topic.
func (t Topics) ActionDevice(topic string) (string, bool) {
	prefix := t.action + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// SystemStatus returns the retained status topic for a hub client.
func SystemStatus(clientID string) string {
	return StatusPrefix + "/" + clientID
}
