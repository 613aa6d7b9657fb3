package wsframe

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// MessageBuffer is the concrete message_buffer of §6: a growable,
// reusable payload buffer plus the small amount of framing metadata the
// inbound processor and outbound builder attach to it.
type MessageBuffer struct {
	opcode     Opcode
	fin        bool
	prepared   bool
	compressed bool
	bb         *bytebufferpool.ByteBuffer
	header     []byte // serialized wire header, set by the outbound builder
}

func (m *MessageBuffer) Opcode() Opcode   { return m.opcode }
func (m *MessageBuffer) Fin() bool        { return m.fin }
func (m *MessageBuffer) Prepared() bool   { return m.prepared }
func (m *MessageBuffer) Compressed() bool { return m.compressed }

// Payload returns the mutable accumulated bytes (get_raw_payload, §6).
func (m *MessageBuffer) Payload() []byte { return m.bb.B }

// Header returns the serialized wire header the outbound builder
// attached to this buffer. Empty until a Prepare* call has run.
func (m *MessageBuffer) Header() []byte { return m.header }

// Append grows the buffer by p, in place.
func (m *MessageBuffer) Append(p []byte) {
	m.bb.Write(p)
}

// SetHeader records the opcode/fin framing the buffer was started with.
func (m *MessageBuffer) SetHeader(opcode Opcode, fin bool) {
	m.opcode, m.fin = opcode, fin
}

// SetPrepared marks the buffer as holding a fully assembled message
// (set_prepared, §6).
func (m *MessageBuffer) SetPrepared(v bool) { m.prepared = v }

// SetCompressed records whether the message's first frame carried
// RSV1=1 (get_compressed, §6).
func (m *MessageBuffer) SetCompressed(v bool) { m.compressed = v }

func (m *MessageBuffer) reset() {
	m.bb.Reset()
	m.opcode = 0
	m.fin = false
	m.prepared = false
	m.compressed = false
	m.header = m.header[:0]
}

// BufferManager is the message buffer manager collaborator (§6):
// get_message(opcode, size_hint) plus ownership-transfer release.
type BufferManager interface {
	GetMessage(opcode Opcode, sizeHint int) *MessageBuffer
	Release(*MessageBuffer)
}

// BufferManagerMetrics tracks pool effectiveness, mirroring the
// teacher's own buffer_pool.go atomic counters, scaled down to the one
// pool this engine needs (the size-class tiering the teacher hand-rolls
// is subsumed by bytebufferpool's own internal calibration).
type BufferManagerMetrics struct {
	Gets   uint64
	Hits   uint64
	Misses uint64
}

// PooledBufferManager is the default BufferManager: a bytebufferpool.Pool
// of reusable ByteBuffers, falling back to a fresh allocation only on a
// genuine pool miss. bytebufferpool.Pool already does its own internal
// size-class calibration and sharded freelist; a hand-rolled per-CPU
// layer on top of it would just be managing the same freelist twice.
type PooledBufferManager struct {
	pool   bytebufferpool.Pool
	gets   atomic.Uint64
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPooledBufferManager constructs a PooledBufferManager.
func NewPooledBufferManager() *PooledBufferManager {
	return &PooledBufferManager{}
}

// GetMessage returns a MessageBuffer ready to receive sizeHint bytes.
func (m *PooledBufferManager) GetMessage(opcode Opcode, sizeHint int) *MessageBuffer {
	m.gets.Add(1)
	bb := m.pool.Get()
	if cap(bb.B) == 0 {
		m.misses.Add(1)
		if sizeHint > 0 {
			bb.B = make([]byte, 0, sizeHint)
		}
	} else {
		m.hits.Add(1)
	}
	return &MessageBuffer{opcode: opcode, bb: bb}
}

// Release returns msg's backing buffer to the pool. After Release, msg
// must not be used again.
func (m *PooledBufferManager) Release(msg *MessageBuffer) {
	if msg == nil || msg.bb == nil {
		return
	}
	m.pool.Put(msg.bb)
}

// Metrics returns a point-in-time snapshot of pool effectiveness.
func (m *PooledBufferManager) Metrics() BufferManagerMetrics {
	return BufferManagerMetrics{
		Gets:   m.gets.Load(),
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}
}
