// Package ami implements the Asterisk Manager Interface session used by the
// dialer: a line-oriented TCP protocol carrying asynchronous events and
// action responses as blocks of "Key: Value" headers.
package ami

import (
	"strconv"
	"strings"
)

// Event represents a parsed AMI frame as an ordered set of key-value pairs.
// Asynchronous events and action responses share this shape; IsResponse
// distinguishes them.
type Event struct {
	headers []header
}

type header struct {
	Key   string
	Value string
}

// NewEvent creates an Event from a flat list of key-value pairs.
// Intended for tests and synthetic frames.
func NewEvent(kvs ...string) Event {
	e := Event{}
	for i := 0; i+1 < len(kvs); i += 2 {
		e.headers = append(e.headers, header{Key: kvs[i], Value: kvs[i+1]})
	}
	return e
}

// Get returns the value for the given key, or empty string if not present.
// The first occurrence wins when a key repeats.
func (e Event) Get(key string) string {
	for _, h := range e.headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}

// GetInt returns the integer value for the given key, or 0 if missing or
// not parseable.
func (e Event) GetInt(key string) int {
	v, _ := strconv.Atoi(e.Get(key))
	return v
}

// Type returns the Event header value (the AMI event type), empty for
// responses.
func (e Event) Type() string {
	return e.Get("Event")
}

// ActionID returns the ActionID header linking a frame to the action that
// caused it.
func (e Event) ActionID() string {
	return e.Get("ActionID")
}

// Var returns the value of a channel variable attached to the event.
// Variables arrive either as direct headers (UserEvent payloads) or as
// repeated "ChanVariable: Name=value" headers when manager.conf lists them
// under channelvars.
func (e Event) Var(name string) string {
	if v := e.Get(name); v != "" {
		return v
	}
	for _, h := range e.headers {
		if h.Key != "ChanVariable" {
			continue
		}
		if k, v, ok := strings.Cut(h.Value, "="); ok && k == name {
			return v
		}
	}
	return ""
}

// IsResponse reports whether this frame is an action response rather than
// an asynchronous event.
func (e Event) IsResponse() bool {
	return e.Get("Response") != ""
}

// Success reports whether a response frame indicates the action was accepted.
func (e Event) Success() bool {
	return e.Get("Response") == "Success"
}
