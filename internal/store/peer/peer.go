// Package peer implements storage capabilities against another hub's HTTP API.
//
// Status mapping:
//   - 404 on a read means absent (nil result, nil error)
//   - 404 on update or delete is store.ErrNotFound
//   - 409 is store.ErrConflict
//   - any other non-2xx status is a store.InternalError carrying the status
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/store"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// maxErrorBody bounds how much of an error response is kept as detail.
const maxErrorBody = 512

// Client talks to a peer hub.
type Client struct {
	http *http.Client
	base string
	cfg  config.PeerConfig
}

// New returns a client for cfg.BaseURL.
func New(cfg config.PeerConfig, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		base: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:  cfg,
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func join(path string, id string) string {
	path = strings.TrimRight(path, "/")
	if id == "" {
		return path
	}
	return path + "/" + url.PathEscape(id)
}

// do sends body as JSON and decodes a 2xx response into out.
// It returns the status code so callers can interpret 404.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, store.Internal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, store.Internal(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, store.Internalf("peer %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, store.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return resp.StatusCode, store.ErrConflict
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // detail only
		return resp.StatusCode, store.Internalf("peer %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, store.Internalf("peer %s %s: decoding response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// read treats 404 as absent.
func (c *Client) read(ctx context.Context, path string, out any) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, path, nil, out)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// create treats 404 as an internal failure; only update and delete may
// report NotFound.
func (c *Client) create(ctx context.Context, path string, body any) error {
	status, err := c.do(ctx, http.MethodPost, path, body, nil)
	if status == http.StatusNotFound {
		return store.Internalf("peer POST %s: status 404", path)
	}
	return err
}

// Devices returns the device capabilities.
func (c *Client) Devices() *DeviceClient { return &DeviceClient{c: c, paths: c.cfg.Devices} }

// States returns the device state capabilities.
func (c *Client) States() *StateClient { return &StateClient{c: c, paths: c.cfg.States} }

// Events returns the event capabilities.
func (c *Client) Events() *EventClient { return &EventClient{c: c, paths: c.cfg.Events} }

// DeviceClient serves every device capability over HTTP.
type DeviceClient struct {
	c     *Client
	paths config.PeerPathsConfig
}

// Create posts a new device. A 409 is returned as store.ErrConflict.
func (d *DeviceClient) Create(ctx context.Context, device *telemetry.Device) error {
	return d.c.create(ctx, d.paths.Create, device)
}

// Update replaces the device with the same id.
func (d *DeviceClient) Update(ctx context.Context, device *telemetry.Device) error {
	_, err := d.c.do(ctx, http.MethodPut, join(d.paths.Update, device.ID.String()), device, nil)
	return err
}

// DeleteByID removes a device.
func (d *DeviceClient) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := d.c.do(ctx, http.MethodDelete, join(d.paths.Delete, id.String()), nil, nil)
	return err
}

// GetByID returns the device, or nil when the peer answers 404.
func (d *DeviceClient) GetByID(ctx context.Context, id uuid.UUID) (*telemetry.Device, error) {
	var device telemetry.Device
	found, err := d.c.read(ctx, join(d.paths.Get, id.String()), &device)
	if err != nil || !found {
		return nil, err
	}
	return &device, nil
}

// GetByPhysicalID looks a device up by the id it reports itself with.
func (d *DeviceClient) GetByPhysicalID(ctx context.Context, physicalID string) (*telemetry.Device, error) {
	var device telemetry.Device
	found, err := d.c.read(ctx, join(d.paths.GetByPhysicalID, physicalID), &device)
	if err != nil || !found {
		return nil, err
	}
	return &device, nil
}

// deviceList is the list response body of the devices endpoint.
type deviceList struct {
	Devices []*telemetry.Device `json:"devices"`
}

// ListByOwner returns the devices owned by userID.
func (d *DeviceClient) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*telemetry.Device, error) {
	var list deviceList
	path := join(d.paths.Get, "") + "?" + url.Values{"user_id": {userID.String()}}.Encode()
	if _, err := d.c.read(ctx, path, &list); err != nil {
		return nil, err
	}
	return list.Devices, nil
}

// StateClient serves every device state capability over HTTP.
type StateClient struct {
	c     *Client
	paths config.PeerPathsConfig
}

// Create posts a new device state.
func (s *StateClient) Create(ctx context.Context, state *telemetry.DeviceState) error {
	return s.c.create(ctx, s.paths.Create, state)
}

// Update replaces the state of state.DeviceID.
func (s *StateClient) Update(ctx context.Context, state *telemetry.DeviceState) error {
	_, err := s.c.do(ctx, http.MethodPut, join(s.paths.Update, state.DeviceID.String()), state, nil)
	return err
}

// DeleteByID removes the state of a device.
func (s *StateClient) DeleteByID(ctx context.Context, deviceID uuid.UUID) error {
	_, err := s.c.do(ctx, http.MethodDelete, join(s.paths.Delete, deviceID.String()), nil, nil)
	return err
}

// GetByDeviceID returns the state, or nil when the peer answers 404.
func (s *StateClient) GetByDeviceID(ctx context.Context, deviceID uuid.UUID) (*telemetry.DeviceState, error) {
	var state telemetry.DeviceState
	found, err := s.c.read(ctx, join(s.paths.Get, deviceID.String()), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// EventClient serves the event capabilities over HTTP.
type EventClient struct {
	c     *Client
	paths config.PeerPathsConfig
}

// Create posts an event.
func (e *EventClient) Create(ctx context.Context, event telemetry.Event) error {
	return e.c.create(ctx, e.paths.Create, event)
}

// eventList is the list response body of the events endpoint.
type eventList struct {
	Events []telemetry.Event `json:"events"`
}

// ListByDevice returns the events recorded for physicalID. The result is never nil.
func (e *EventClient) ListByDevice(ctx context.Context, physicalID string) ([]telemetry.Event, error) {
	var list eventList
	if _, err := e.c.read(ctx, join(e.paths.Get, physicalID), &list); err != nil {
		return nil, err
	}
	if list.Events == nil {
		return []telemetry.Event{}, nil
	}
	return list.Events, nil
}

var (
	_ store.Creator[*telemetry.Device]      = (*DeviceClient)(nil)
	_ store.Updater[*telemetry.Device]      = (*DeviceClient)(nil)
	_ store.Deleter[uuid.UUID]              = (*DeviceClient)(nil)
	_ store.DeviceGetter                    = (*DeviceClient)(nil)
	_ store.Creator[*telemetry.DeviceState] = (*StateClient)(nil)
	_ store.Updater[*telemetry.DeviceState] = (*StateClient)(nil)
	_ store.Deleter[uuid.UUID]              = (*StateClient)(nil)
	_ store.StateGetter                     = (*StateClient)(nil)
	_ store.Creator[telemetry.Event]        = (*EventClient)(nil)
	_ store.EventGetter                     = (*EventClient)(nil)
)
