package llm

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// sseReader splits a provider's text/event-stream body into events.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReaderSize(r, 16*1024)}
}

// next returns the next dispatched event. Comment lines and fields other
// than event and data are skipped. It returns io.EOF once the body is
// exhausted and nothing is pending.
func (s *sseReader) next() (string, []byte, error) {
	var (
		event   string
		data    bytes.Buffer
		hasData bool
	)

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", nil, err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if hasData || event != "" {
				return event, data.Bytes(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				if hasData {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				hasData = true
			}
		}

		if eof {
			if hasData || event != "" {
				return event, data.Bytes(), nil
			}
			return "", nil, io.EOF
		}
	}
}
