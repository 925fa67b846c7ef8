package ami

import (
	"bufio"
	"io"
	"strings"
)

// Parser reads an AMI byte stream and emits Events.
type Parser struct {
	scanner *bufio.Scanner
}

// NewParser creates a Parser that reads from the given reader.
func NewParser(r io.Reader) *Parser {
	return &Parser{scanner: bufio.NewScanner(r)}
}

// Next reads the next frame from the stream. Returns the frame and true,
// or a zero Event and false once the stream ends.
func (p *Parser) Next() (Event, bool) {
	var headers []header

	for p.scanner.Scan() {
		line := strings.TrimRight(p.scanner.Text(), "\r")

		// A blank line terminates the current frame.
		if line == "" {
			if len(headers) > 0 {
				return Event{headers: headers}, true
			}
			continue
		}

		key, value, found := strings.Cut(line, ": ")
		if !found {
			// Lines without a separator occur outside frames (the banner)
			// and occasionally inside them (continuation output). Skip the
			// former, keep the latter under an empty key.
			if len(headers) == 0 {
				continue
			}
			headers = append(headers, header{Key: "", Value: line})
			continue
		}
		headers = append(headers, header{Key: key, Value: value})
	}

	// Stream ended without a trailing blank line.
	if len(headers) > 0 {
		return Event{headers: headers}, true
	}
	return Event{}, false
}

// ParseBytes parses every frame in the given byte slice.
func ParseBytes(data []byte) []Event {
	p := NewParser(strings.NewReader(string(data)))
	var events []Event
	for {
		evt, ok := p.Next()
		if !ok {
			return events
		}
		events = append(events, evt)
	}
}
