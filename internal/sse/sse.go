package sse

import (
	"bytes"
	"strconv"
	"strings"
)

// Event is a single framed provider event. For text SSE, Name, ID and Retry
// come from the "event:", "id:" and "retry:" fields. For the AWS event
// stream, Name carries the ":event-type" header. Data is left as the raw
// payload string so sentinels like "[DONE]" survive framing; decoders
// JSON-unmarshal it themselves.
type Event struct {
	Name  string
	ID    string
	Retry int
	Data  string
}

// Framer accumulates transport chunks and emits complete events. Partial
// trailing bytes are buffered until the next Feed call.
type Framer interface {
	Feed(chunk []byte) ([]Event, error)
}

// TextFramer parses text/event-stream bodies. Events are terminated by a
// blank line; multiple "data:" lines within one event are joined with "\n".
// Comment lines (leading ':') are skipped and unknown fields ignored.
type TextFramer struct {
	buf []byte

	// Fields of the event currently being assembled. An event may straddle
	// Feed calls, so this state persists between them.
	dataLines []string
	name      string
	id        string
	retry     int
}

// NewTextFramer returns a framer for text Server-Sent Events.
func NewTextFramer() *TextFramer {
	return &TextFramer{}
}

// Feed appends chunk to the internal buffer and returns all events whose
// terminating blank line has arrived.
func (f *TextFramer) Feed(chunk []byte) ([]Event, error) {
	f.buf = append(f.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(f.buf[:idx])
		f.buf = f.buf[idx+1:]
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			// Blank line terminates the pending event.
			if event, ok := f.flush(); ok {
				events = append(events, event)
			}
			continue
		}
		f.consumeLine(line)
	}
	return events, nil
}

// flush emits the pending event if it carries data, and resets field state.
func (f *TextFramer) flush() (Event, bool) {
	if len(f.dataLines) == 0 {
		f.name, f.id = "", ""
		f.retry = 0
		return Event{}, false
	}
	event := Event{
		Name:  f.name,
		ID:    f.id,
		Retry: f.retry,
		Data:  strings.Join(f.dataLines, "\n"),
	}
	f.dataLines = nil
	f.name, f.id = "", ""
	f.retry = 0
	return event, true
}

// consumeLine parses a single "field: value" line into the pending event.
func (f *TextFramer) consumeLine(line string) {
	if strings.HasPrefix(line, ":") {
		return // SSE comment
	}

	field := line
	value := ""
	if colon := strings.IndexByte(line, ':'); colon >= 0 {
		field = line[:colon]
		value = strings.TrimPrefix(line[colon+1:], " ")
	}

	switch field {
	case "data":
		f.dataLines = append(f.dataLines, value)
	case "event":
		f.name = value
	case "id":
		f.id = value
	case "retry":
		// Invalid integers are ignored per the SSE grammar.
		if n, err := strconv.Atoi(value); err == nil {
			f.retry = n
		}
	}
}
