package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// DefaultSerialEvent names events from lines that omit the event name.
const DefaultSerialEvent = "serial"

// maxLineLength caps a single serial line.
const maxLineLength = 4096

// ErrMalformedLine is returned for lines that are not
// "physical_id;event;k=v,..." or "physical_id;k=v,...".
var ErrMalformedLine = errors.New("ingest: malformed serial line")

// EventRecorder stores schema-free events. *service.EventService satisfies it.
type EventRecorder interface {
	Record(ctx context.Context, event telemetry.Event) (telemetry.Event, error)
}

// ParseLine turns one serial line into an event. Values are typed by
// inference; the event gets no id and the caller's timestamp.
func ParseLine(line string, at time.Time) (telemetry.Event, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ";")

	var physicalID, name, pairs string
	switch len(parts) {
	case 2:
		physicalID, name, pairs = parts[0], DefaultSerialEvent, parts[1]
	case 3:
		physicalID, name, pairs = parts[0], parts[1], parts[2]
	default:
		return telemetry.Event{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	physicalID = strings.TrimSpace(physicalID)
	name = strings.TrimSpace(name)
	if physicalID == "" || name == "" {
		return telemetry.Event{}, fmt.Errorf("%w: missing device or event: %q", ErrMalformedLine, line)
	}

	payload := telemetry.Payload{}
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return telemetry.Event{}, fmt.Errorf("%w: bad field %q", ErrMalformedLine, pair)
		}
		payload[key] = telemetry.InferValue(strings.TrimSpace(value))
	}
	if len(payload) == 0 {
		return telemetry.Event{}, fmt.Errorf("%w: no fields: %q", ErrMalformedLine, line)
	}

	return telemetry.Event{
		PhysicalID: physicalID,
		Name:       name,
		Timestamp:  at,
		Payload:    payload,
	}, nil
}

// OpenSerial opens the configured port in 8N1 mode.
func OpenSerial(cfg config.SerialConfig) (serial.Port, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}

// LineReader records one event per line read from a serial source.
type LineReader struct {
	src      io.Reader
	recorder EventRecorder
	logger   Logger
	now      func() time.Time
}

// NewLineReader returns a reader over src.
func NewLineReader(src io.Reader, recorder EventRecorder) *LineReader {
	return &LineReader{
		src:      src,
		recorder: recorder,
		logger:   noopLogger{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger.
func (r *LineReader) SetLogger(logger Logger) {
	r.logger = logger
}

// Run reads until src is exhausted or ctx is cancelled. Bad lines and
// rejected events are logged and skipped. If src is an io.Closer, Run owns
// it: cancellation closes it to unblock the read, and it is closed once
// before Run returns.
func (r *LineReader) Run(ctx context.Context) error {
	if closer, ok := r.src.(io.Closer); ok {
		var once sync.Once
		closeSrc := func() {
			once.Do(func() { closer.Close() }) //nolint:errcheck // nothing left to read
		}
		stop := context.AfterFunc(ctx, closeSrc)
		defer stop()
		defer closeSrc()
	}

	scanner := bufio.NewScanner(r.src)
	scanner.Buffer(make([]byte, 0, 256), maxLineLength)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		r.handle(ctx, line)
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading serial input: %w", err)
	}
	return nil
}

func (r *LineReader) handle(ctx context.Context, line string) {
	event, err := ParseLine(line, r.now())
	if err != nil {
		r.logger.Warn("skipping serial line", "error", err)
		return
	}
	if _, err := r.recorder.Record(ctx, event); err != nil {
		r.logger.Warn("serial event not recorded",
			"physical_id", event.PhysicalID, "event", event.Name, "error", err)
	}
}
