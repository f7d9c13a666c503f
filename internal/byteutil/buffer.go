package byteutil

import (
	"bytes"
	"sync"
)

var bytesBuffer = sync.Pool{
	New: func() interface{} { return &bytes.Buffer{} },
}

// GetBytesBuf returns an empty buffer from the pool.
func GetBytesBuf() *bytes.Buffer {
	p := bytesBuffer.Get().(*bytes.Buffer)
	p.Reset()
	return p
}

// PutBytesBuf returns the buffer to the pool. Bytes taken from it must not be
// used afterwards.
func PutBytesBuf(p *bytes.Buffer) {
	if p == nil {
		return
	}
	bytesBuffer.Put(p)
}

// Detach copies the buffer contents so that they outlive the buffer.
func Detach(p *bytes.Buffer) []byte {
	out := make([]byte, p.Len())
	copy(out, p.Bytes())
	return out
}
