package wsframe

import "testing"

func TestPooledBufferManagerGetReleaseCycle(t *testing.T) {
	m := NewPooledBufferManager()

	buf := m.GetMessage(OpcodeText, 64)
	buf.Append([]byte("hello"))
	buf.SetHeader(OpcodeText, true)
	buf.SetPrepared(true)

	if string(buf.Payload()) != "hello" {
		t.Fatalf("Payload() = %q, want %q", buf.Payload(), "hello")
	}
	if buf.Opcode() != OpcodeText || !buf.Fin() || !buf.Prepared() {
		t.Errorf("buffer metadata not set as expected: %+v", buf)
	}

	m.Release(buf)

	metrics := m.Metrics()
	if metrics.Gets != 1 {
		t.Errorf("Gets = %d, want 1", metrics.Gets)
	}
}

func TestPooledBufferManagerReusesReleasedBuffers(t *testing.T) {
	m := NewPooledBufferManager()

	first := m.GetMessage(OpcodeBinary, 4096)
	first.Append(make([]byte, 4096))
	m.Release(first)

	second := m.GetMessage(OpcodeBinary, 4096)
	defer m.Release(second)

	if len(second.Payload()) != 0 {
		t.Errorf("reused buffer should start at length 0, got %d", len(second.Payload()))
	}
}

func BenchmarkPooledBufferManagerGetRelease(b *testing.B) {
	m := NewPooledBufferManager()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := m.GetMessage(OpcodeBinary, 1024)
		buf.Append(make([]byte, 1024))
		m.Release(buf)
	}
}
