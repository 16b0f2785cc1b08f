package sse

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
)

// AWS event stream framing constants.
const (
	eventStreamPreludeLen = 12 // total length + headers length + prelude CRC
	eventStreamCRCLen     = 4
	eventStreamMaxMessage = 16 << 20 // corrupt-length guard

	headerTypeString = 7
)

// EventStreamFramer parses the binary vnd.amazon.eventstream framing used by
// Bedrock response streams. Each message is length-prefixed with CRC32
// checksums over the prelude and the full message, carries typed headers
// (":event-type" selects the event name) and a JSON payload whose model
// bytes arrive base64-encoded under "bytes".
type EventStreamFramer struct {
	buf []byte
}

// NewEventStreamFramer returns a framer for Bedrock binary event streams.
func NewEventStreamFramer() *EventStreamFramer {
	return &EventStreamFramer{}
}

// Feed appends chunk and returns every message whose full length has arrived.
func (f *EventStreamFramer) Feed(chunk []byte) ([]Event, error) {
	f.buf = append(f.buf, chunk...)

	var events []Event
	for {
		if len(f.buf) < eventStreamPreludeLen {
			return events, nil
		}
		total := binary.BigEndian.Uint32(f.buf[0:4])
		headersLen := binary.BigEndian.Uint32(f.buf[4:8])
		preludeCRC := binary.BigEndian.Uint32(f.buf[8:12])

		if crc32.ChecksumIEEE(f.buf[0:8]) != preludeCRC {
			return events, fmt.Errorf("event stream: prelude checksum mismatch")
		}
		if total > eventStreamMaxMessage || total < eventStreamPreludeLen+eventStreamCRCLen {
			return events, fmt.Errorf("event stream: invalid message length %d", total)
		}
		if headersLen > total-eventStreamPreludeLen-eventStreamCRCLen {
			return events, fmt.Errorf("event stream: headers length %d exceeds message", headersLen)
		}
		if uint32(len(f.buf)) < total {
			return events, nil
		}

		msg := f.buf[:total]
		messageCRC := binary.BigEndian.Uint32(msg[total-eventStreamCRCLen:])
		if crc32.ChecksumIEEE(msg[:total-eventStreamCRCLen]) != messageCRC {
			return events, fmt.Errorf("event stream: message checksum mismatch")
		}

		headers, err := parseEventStreamHeaders(msg[eventStreamPreludeLen : eventStreamPreludeLen+headersLen])
		if err != nil {
			return events, err
		}
		payload := msg[eventStreamPreludeLen+headersLen : total-eventStreamCRCLen]

		data, err := unwrapEventStreamPayload(payload)
		if err != nil {
			return events, err
		}
		events = append(events, Event{Name: headers[":event-type"], Data: data})

		f.buf = append(f.buf[:0:0], f.buf[total:]...)
	}
}

// parseEventStreamHeaders decodes the header block. Only string-typed values
// are meaningful here (":event-type", ":content-type", ":message-type");
// other value types are skipped by length.
func parseEventStreamHeaders(b []byte) (map[string]string, error) {
	headers := make(map[string]string)
	for len(b) > 0 {
		nameLen := int(b[0])
		b = b[1:]
		if len(b) < nameLen+1 {
			return nil, fmt.Errorf("event stream: truncated header name")
		}
		name := string(b[:nameLen])
		valueType := b[nameLen]
		b = b[nameLen+1:]

		switch valueType {
		case 0, 1: // bool true/false, no value bytes
		case 2: // byte
			if len(b) < 1 {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			b = b[1:]
		case 3: // int16
			if len(b) < 2 {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			b = b[2:]
		case 4: // int32
			if len(b) < 4 {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			b = b[4:]
		case 5, 8: // int64, timestamp
			if len(b) < 8 {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			b = b[8:]
		case 6, headerTypeString: // byte array, string
			if len(b) < 2 {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			valueLen := int(binary.BigEndian.Uint16(b))
			b = b[2:]
			if len(b) < valueLen {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			if valueType == headerTypeString {
				headers[name] = string(b[:valueLen])
			}
			b = b[valueLen:]
		case 9: // uuid
			if len(b) < 16 {
				return nil, fmt.Errorf("event stream: truncated header value")
			}
			b = b[16:]
		default:
			return nil, fmt.Errorf("event stream: unknown header value type %d", valueType)
		}
	}
	return headers, nil
}

// unwrapEventStreamPayload extracts the model JSON from the message payload.
// Bedrock wraps it as {"chunk":{"bytes":"<base64>"}} or {"bytes":"<base64>"};
// anything else passes through verbatim (exception payloads are plain JSON).
func unwrapEventStreamPayload(payload []byte) (string, error) {
	var envelope struct {
		Chunk *struct {
			Bytes string `json:"bytes"`
		} `json:"chunk"`
		Bytes string `json:"bytes"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return string(payload), nil
	}

	encoded := envelope.Bytes
	if envelope.Chunk != nil {
		encoded = envelope.Chunk.Bytes
	}
	if encoded == "" {
		return string(payload), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("event stream: decode payload bytes: %w", err)
	}
	return string(decoded), nil
}
