package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ryzeai/ryze/event"
)

// frameSeparator terminates every frame.
var frameSeparator = []byte("\n\n")

// readBufferSize is the chunk size used by Read.
const readBufferSize = 4096

// FrameParseError describes a frame that was dropped by the decoder.
type FrameParseError struct {
	Reason string
	Frame  string
	Err    error
}

func (e *FrameParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse frame: %s: %v", e.Reason, e.Err)
	}
	return "parse frame: " + e.Reason
}

func (e *FrameParseError) Unwrap() error {
	return e.Err
}

// Decoder reconstructs events from a byte stream delivered in arbitrary
// chunks. A frame split across chunks, including inside its JSON payload or
// inside a multi-byte character, is held until its terminator arrives.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf     []byte
	dropped int
	logger  *slog.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger sets the logger used to report dropped frames.
func WithLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// NewDecoder creates a decoder with an empty buffer.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends a chunk and returns every event completed by it, in order.
// Malformed frames and frames with undecodable payloads are skipped; they
// never affect the frames around them.
func (d *Decoder) Feed(chunk []byte) []event.Event {
	d.buf = append(d.buf, chunk...)

	var events []event.Event
	for {
		idx := bytes.Index(d.buf, frameSeparator)
		if idx < 0 {
			break
		}
		frame := d.buf[:idx]
		d.buf = d.buf[idx+len(frameSeparator):]

		if len(bytes.TrimSpace(frame)) == 0 {
			continue
		}

		ev, err := ParseFrame(frame)
		if err != nil {
			if errors.Is(err, event.ErrUnknownEvent) {
				d.logger.Debug("Ignoring unknown stream event", "error", err)
				continue
			}
			d.dropped++
			d.logger.Warn("Dropping malformed stream frame", "error", err)
			continue
		}
		events = append(events, ev)
	}

	// Compact so the retained remainder does not pin consumed frames.
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 2*len(d.buf)+readBufferSize {
		d.buf = bytes.Clone(d.buf)
	}

	return events
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Dropped returns the number of frames discarded as malformed so far.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// ParseFrame decodes one frame without its terminating blank line. The
// "event:" and "data:" lines may appear in either order; other lines are
// ignored.
func ParseFrame(frame []byte) (event.Event, error) {
	var (
		name, data       []byte
		hasName, hasData bool
	)

	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))

		if v, ok := field(line, "event:"); ok && !hasName {
			name, hasName = bytes.TrimSpace(v), true
		} else if v, ok := field(line, "data:"); ok && !hasData {
			data, hasData = v, true
		}
	}

	if !hasName {
		return nil, &FrameParseError{Reason: "missing event line", Frame: string(frame)}
	}
	if !hasData {
		return nil, &FrameParseError{Reason: "missing data line", Frame: string(frame)}
	}

	ev, err := event.Decode(string(name), data)
	if err != nil {
		if errors.Is(err, event.ErrUnknownEvent) {
			return nil, err
		}
		return nil, &FrameParseError{Reason: "undecodable payload", Frame: string(frame), Err: err}
	}
	return ev, nil
}

// field returns the value of a "key:" line with a single optional space
// after the colon removed.
func field(line []byte, key string) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte(key)) {
		return nil, false
	}
	v := line[len(key):]
	if len(v) > 0 && v[0] == ' ' {
		v = v[1:]
	}
	return v, true
}

// Read drives r through a decoder, calling fn for every event in arrival
// order, until r is exhausted. It returns nil on a clean end of stream, the
// read error on transport failure, the context error on cancellation, or the
// first error returned by fn.
func Read(ctx context.Context, r io.Reader, fn func(event.Event) error, opts ...DecoderOption) error {
	dec := NewDecoder(opts...)
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range dec.Feed(buf[:n]) {
				if ferr := fn(ev); ferr != nil {
					return ferr
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				if dec.Buffered() > 0 {
					dec.logger.Debug("Stream ended with incomplete frame", "bytes", dec.Buffered())
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("read stream: %w", err)
		}
	}
}
