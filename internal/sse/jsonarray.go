package sse

import (
	"bytes"
	"fmt"
)

// JSONArrayFramer parses bodies that are a single JSON array of objects,
// emitting each complete top-level element as an event. Some Gemini
// configurations stream this shape instead of text SSE. Elements are
// detected by brace depth with string/escape awareness, so object
// boundaries split across chunks are handled correctly.
type JSONArrayFramer struct {
	buf []byte

	started  bool
	closed   bool
	depth    int
	inString bool
	escaped  bool

	// scan is the next unexamined offset in buf; elemStart marks the opening
	// brace of the element currently being assembled (-1 when between
	// elements).
	scan      int
	elemStart int
}

// NewJSONArrayFramer returns a framer for JSON-array streaming bodies.
func NewJSONArrayFramer() *JSONArrayFramer {
	return &JSONArrayFramer{elemStart: -1}
}

// Feed appends chunk and returns every array element completed so far.
func (f *JSONArrayFramer) Feed(chunk []byte) ([]Event, error) {
	if f.closed {
		return nil, nil
	}
	f.buf = append(f.buf, chunk...)

	var events []Event
	for ; f.scan < len(f.buf); f.scan++ {
		c := f.buf[f.scan]

		if !f.started {
			if isJSONSpace(c) {
				continue
			}
			if c != '[' {
				return nil, fmt.Errorf("json array stream: expected '[', got %q", c)
			}
			f.started = true
			continue
		}

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
			}
			continue
		}

		switch c {
		case '"':
			f.inString = true
		case '{':
			if f.depth == 0 {
				f.elemStart = f.scan
			}
			f.depth++
		case '}':
			f.depth--
			if f.depth == 0 && f.elemStart >= 0 {
				events = append(events, Event{Data: string(f.buf[f.elemStart : f.scan+1])})
				f.elemStart = -1
			}
		case '[':
			if f.depth > 0 {
				f.depth++
			}
		case ']':
			if f.depth > 0 {
				f.depth--
			} else {
				f.closed = true
				f.compact()
				return events, nil
			}
		}
	}
	f.compact()
	return events, nil
}

// compact drops consumed bytes so the buffer does not grow with the stream.
func (f *JSONArrayFramer) compact() {
	keepFrom := f.scan
	if f.elemStart >= 0 && f.elemStart < keepFrom {
		keepFrom = f.elemStart
	}
	if keepFrom == 0 {
		return
	}
	f.buf = append(f.buf[:0:0], f.buf[keepFrom:]...)
	f.scan -= keepFrom
	if f.elemStart >= 0 {
		f.elemStart -= keepFrom
	}
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// AutoFramer defers the choice between text SSE and the JSON-array fallback
// until the first non-whitespace byte arrives: '[' selects the array
// grammar, anything else text SSE.
type AutoFramer struct {
	inner Framer
	held  []byte
}

// NewAutoFramer returns a framer that sniffs the body format on first byte.
func NewAutoFramer() *AutoFramer {
	return &AutoFramer{}
}

// Feed buffers until the format is known, then delegates to the selected framer.
func (f *AutoFramer) Feed(chunk []byte) ([]Event, error) {
	if f.inner != nil {
		return f.inner.Feed(chunk)
	}
	f.held = append(f.held, chunk...)
	trimmed := bytes.TrimLeft(f.held, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		f.inner = NewJSONArrayFramer()
	} else {
		f.inner = NewTextFramer()
	}
	held := f.held
	f.held = nil
	return f.inner.Feed(held)
}
