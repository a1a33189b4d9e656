package poslink

import "fmt"

// AppendFrameRaw wraps body in STX/ETX with a valid LRC, without escaping.
func AppendFrameRaw(body []byte) []byte {
	frame := append([]byte{STX}, body...)
	frame = append(frame, ETX)

	return append(frame, LRC(frame[1:]))
}

func hexByte(b byte) string {
	return fmt.Sprintf("%02X", b)
}
