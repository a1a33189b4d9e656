package poslink

import (
	"fmt"
	"strings"
)

// Control bytes.
const (
	STX byte = 0x02 // start of text
	ETX byte = 0x03 // end of text
	ENQ byte = 0x05
	ACK byte = 0x06
	DLE byte = 0x10 // data link escape
	NAK byte = 0x15
	FS  byte = 0x1C // escaped comma

	// Separator delimits the fields of a frame.
	Separator byte = ','
)

const (
	// MinFrameLength is the shortest byte sequence that can hold a frame.
	MinFrameLength = 5
	// MaxFrameLength is the largest frame accepted from a terminal.
	MaxFrameLength = 5500
)

// LRC computes the longitudinal redundancy check of data: the XOR of all bytes.
//
// For a frame, data is everything after STX up to and including ETX.
func LRC(data []byte) byte {
	var lrc byte
	for _, b := range data {
		lrc ^= b
	}

	return lrc
}

// needsEscape reports whether b must be prefixed with DLE inside a field.
func needsEscape(b byte) bool {
	switch b {
	case ACK, DLE, ENQ, ETX, FS, NAK, STX:
		return true
	default:
		return false
	}
}

// Escape converts field text to its on-wire form.
func Escape(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] == Separator || needsEscape(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == Separator:
			sb.WriteByte(FS)
		case needsEscape(c):
			sb.WriteByte(DLE)
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

// AppendFrame appends a complete frame holding fields to dst and returns the
// extended slice. Fields are escaped; no length or content checks are made.
func AppendFrame(dst []byte, fields ...string) []byte {
	dst = append(dst, STX)
	start := len(dst)
	for i, f := range fields {
		if i > 0 {
			dst = append(dst, Separator)
		}
		dst = append(dst, Escape(f)...)
	}
	dst = append(dst, ETX)

	return append(dst, LRC(dst[start:]))
}

// DecodeFrame validates a frame and returns its unescaped fields in order.
//
// DecodeFrame fails with ErrProtocol if the frame is shorter than
// MinFrameLength, does not start with STX, has no ETX before the LRC byte,
// or carries a wrong LRC.
func DecodeFrame(frame []byte) ([]string, error) {
	n := len(frame)
	if n < MinFrameLength {
		return nil, fmt.Errorf("%w: frame too short: got %d bytes, want at least %d", ErrProtocol, n, MinFrameLength)
	}
	if frame[0] != STX {
		return nil, fmt.Errorf("%w: frame starts with 0x%02X, want STX", ErrProtocol, frame[0])
	}
	if frame[n-2] != ETX {
		return nil, fmt.Errorf("%w: byte before LRC is 0x%02X, want ETX", ErrProtocol, frame[n-2])
	}
	if want := LRC(frame[1 : n-1]); frame[n-1] != want {
		return nil, fmt.Errorf("%w: LRC mismatch: wire=0x%02X, computed=0x%02X", ErrProtocol, frame[n-1], want)
	}

	return splitFields(frame[1 : n-2])
}

// splitFields splits a frame body on unescaped separators and unescapes each field.
func splitFields(body []byte) ([]string, error) {
	fields := make([]string, 0, 8)
	var sb strings.Builder

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case DLE:
			i++
			if i == len(body) {
				return nil, fmt.Errorf("%w: dangling DLE at end of frame", ErrProtocol)
			}
			sb.WriteByte(body[i])
		case FS:
			sb.WriteByte(Separator)
		case Separator:
			fields = append(fields, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}

	return append(fields, sb.String()), nil
}

var controlNames = map[byte]string{
	STX: "<STX>",
	ETX: "<ETX>",
	ENQ: "<ENQ>",
	ACK: "<ACK>",
	DLE: "<DLE>",
	NAK: "<NAK>",
	FS:  "<FS>",
}

// Printable renders raw protocol bytes for packet logs. Control bytes are
// shown by name; the LRC byte after ETX and other non-printable bytes are
// shown in hex.
func Printable(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 && data[i-1] == ETX {
			fmt.Fprintf(&sb, "<0x%02X>", b)
			continue
		}
		if name, ok := controlNames[b]; ok {
			sb.WriteString(name)
			continue
		}
		if b < 0x20 || b > 0x7E {
			fmt.Fprintf(&sb, "<0x%02X>", b)
			continue
		}
		sb.WriteByte(b)
	}

	return sb.String()
}
