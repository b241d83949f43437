// Package stream implements the line-oriented frame protocol that carries
// pipeline events over a single response body:
//
//	event: <plan|code|explanation>
//	data: <JSON payload>
//	<blank line>
//
// Payloads are always JSON-encoded, so a data line never contains a raw
// newline and the blank line is an unambiguous frame boundary.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ryzeai/ryze/event"
)

// ContentType is the media type of an encoded stream.
const ContentType = "text/event-stream"

// Encoder writes events as frames. When the underlying writer is an
// http.Flusher every frame is flushed as soon as it is written.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	buf     bytes.Buffer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// Encode writes one frame. A returned error means the frame may not have
// reached the peer (e.g. the client disconnected).
func (e *Encoder) Encode(ev event.Event) error {
	frame, err := e.frame(ev)
	if err != nil {
		return err
	}

	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write %s frame: %w", ev.Name(), err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// frame renders the complete frame into a single buffer so that a frame is
// handed to the writer in one call.
func (e *Encoder) frame(ev event.Event) ([]byte, error) {
	e.buf.Reset()
	e.buf.WriteString("event: ")
	e.buf.WriteString(string(ev.Name()))
	e.buf.WriteString("\ndata: ")

	jsonEnc := json.NewEncoder(&e.buf)
	jsonEnc.SetEscapeHTML(false)
	if err := jsonEnc.Encode(ev.Payload()); err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Name(), err)
	}
	// json.Encoder terminates with a newline; add the blank line.
	e.buf.WriteByte('\n')

	return e.buf.Bytes(), nil
}

// EncodeFrame renders a single event as a frame without writing it.
func EncodeFrame(ev event.Event) ([]byte, error) {
	var e Encoder
	frame, err := e.frame(ev)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(frame), nil
}
