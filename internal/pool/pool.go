package pool

import (
	"bytes"
	"sync"
)

// maxPooledBuffer keeps a single oversized render from pinning memory.
const maxPooledBuffer = 4 << 20

// BufferPool holds PNG encode buffers
var BufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64<<10))
	},
}

// GetBuffer retrieves an empty buffer from the pool
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	BufferPool.Put(buf)
}

// CopyBytes returns a copy of buf's contents that stays valid after the
// buffer goes back to the pool.
func CopyBytes(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}
