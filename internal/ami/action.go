package ami

import (
	"fmt"
	"strings"
)

// Action is an outbound manager command built as ordered headers.
// Keys may repeat; Originate relies on repeated Variable headers.
type Action struct {
	headers []header
}

// NewAction creates an action frame with the given Action name.
func NewAction(name string) *Action {
	return &Action{headers: []header{{Key: "Action", Value: name}}}
}

// Set appends a header and returns the action for chaining.
func (a *Action) Set(key, value string) *Action {
	a.headers = append(a.headers, header{Key: key, Value: value})
	return a
}

// ActionID returns the ActionID header, or empty string when unset.
func (a *Action) ActionID() string {
	for _, h := range a.headers {
		if h.Key == "ActionID" {
			return h.Value
		}
	}
	return ""
}

// Get returns the first value for the given key, or empty string.
func (a *Action) Get(key string) string {
	for _, h := range a.headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}

// Encode renders the action in wire format: CRLF-separated headers closed
// by a blank line.
func (a *Action) Encode() []byte {
	var b strings.Builder
	for _, h := range a.headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Key, h.Value)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
