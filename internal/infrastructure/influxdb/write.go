package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Measurement names.
const (
	MeasurementEvent = "device_event"
	MeasurementState = "device_state"
)

// fields converts a payload into InfluxDB fields. Numbers stay unsigned
// integers, booleans and strings keep their type.
func fields(p telemetry.Payload) map[string]any {
	out := make(map[string]any, len(p))
	for name, v := range p {
		out[name] = v.Native()
	}
	return out
}

// EventPoint builds the point for a stored event. Tags carry the device
// identity; fields carry the payload.
//
// Returns nil for an empty payload, since InfluxDB rejects points without
// fields.
func EventPoint(hubID string, device *telemetry.Device, ev telemetry.Event) *write.Point {
	if len(ev.Payload) == 0 {
		return nil
	}
	tags := map[string]string{
		"device_physical_id": ev.PhysicalID,
		"event":              ev.Name,
	}
	if device != nil {
		tags["device_id"] = device.ID.String()
		tags["user_id"] = device.UserID.String()
	}
	if hubID != "" {
		tags["hub_id"] = hubID
	}
	return write.NewPoint(MeasurementEvent, tags, fields(ev.Payload), ev.Timestamp)
}

// StatePoint builds the point for a device state snapshot.
//
// Returns nil for a state with no values.
func StatePoint(hubID string, state *telemetry.DeviceState) *write.Point {
	if state == nil || len(state.Values) == 0 {
		return nil
	}
	tags := map[string]string{"device_id": state.DeviceID.String()}
	if hubID != "" {
		tags["hub_id"] = hubID
	}
	return write.NewPoint(MeasurementState, tags, fields(state.Values), state.LastUpdate)
}

func (c *Client) writePoint(p *write.Point) {
	if p == nil || !c.IsConnected() {
		return
	}
	c.points.WritePoint(p)
	c.written.Add(1)
}

// EventRecorded writes the event as a point. It never blocks on the network.
func (c *Client) EventRecorded(_ context.Context, device *telemetry.Device, ev telemetry.Event) {
	c.writePoint(EventPoint(c.hubID, device, ev))
}

// StateChanged writes the state snapshot as a point.
func (c *Client) StateChanged(_ context.Context, state *telemetry.DeviceState) {
	c.writePoint(StatePoint(c.hubID, state))
}
