package pool

import (
	"bytes"
	"sync"
)

const (
	defaultBufferSize = 256
	// maxPooledBufferSize keeps oversized buffers out of the pool. It is a
	// little larger than the biggest frame a terminal may send.
	maxPooledBufferSize = 8 * 1024
)

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	},
}

// GetBuffer returns an empty buffer from the pool.
//
// Return back the buffer to the pool with PutBuffer.
func GetBuffer() *bytes.Buffer {
	buf, _ := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	return buf
}

// PutBuffer returns buf to the pool.
//
// buf and any slice obtained from buf.Bytes() cannot be accessed after
// returning to the pool.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBufferSize {
		return
	}
	bufferPool.Put(buf)
}
