package byteutil

import (
	"bytes"
	"testing"
)

func TestGetBytesBuf(t *testing.T) {
	buf := GetBytesBuf()
	buf.WriteString("payload")
	out := Detach(buf)
	PutBytesBuf(buf)

	again := GetBytesBuf()
	defer PutBytesBuf(again)
	if again.Len() != 0 {
		t.Errorf("pooled buffer must be empty, got: %d bytes", again.Len())
	}
	again.WriteString("other")
	if !bytes.Equal(out, []byte("payload")) {
		t.Errorf("detached bytes got: %q, expected: %q", out, "payload")
	}
}
