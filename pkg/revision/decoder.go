package revision

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrMalformedEvent is returned when a data line is not a valid event.
var ErrMalformedEvent = errors.New("malformed revision event")

const maxEventSize = 10 * 1024 * 1024

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// Decoder reads events from a line-delimited stream. Lines may be bare JSON
// or server-sent-event "data:" lines; comments, "event:", "id:" and
// "retry:" lines are skipped. A "[DONE]" payload ends the stream.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return nil, io.EOF
	}

	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 || line[0] == ':' {
			continue
		}

		if bytes.HasPrefix(line, dataPrefix) {
			line = bytes.TrimSpace(line[len(dataPrefix):])
		} else if isFieldLine(line) {
			continue
		}
		if len(line) == 0 {
			continue
		}

		if bytes.Equal(line, doneMarker) {
			d.done = true
			return nil, io.EOF
		}

		event, err := ParseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return event, nil
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read revision stream: %w", err)
	}
	return nil, io.EOF
}

func isFieldLine(line []byte) bool {
	for _, field := range []string{"event:", "id:", "retry:"} {
		if bytes.HasPrefix(line, []byte(field)) {
			return true
		}
	}
	return false
}

// Stream couples a Decoder with the response body it reads from.
type Stream struct {
	body      io.ReadCloser
	decoder   *Decoder
	closeOnce sync.Once
	closeErr  error
}

func NewStream(body io.ReadCloser) *Stream {
	return &Stream{body: body, decoder: NewDecoder(body)}
}

func (s *Stream) Next() (Event, error) {
	return s.decoder.Next()
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
