package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyBytesSurvivesReuse(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("png-bytes")
	out := CopyBytes(buf)
	PutBuffer(buf)

	again := GetBuffer()
	again.WriteString("overwritten")
	assert.Equal(t, "png-bytes", string(out))
	assert.Equal(t, 0, GetBuffer().Len())
}

func BenchmarkGetPutBuffer(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := GetBuffer()
		buf.WriteString("x")
		PutBuffer(buf)
	}
}
