package wsframe_test

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/watt-toolkit/wsframe/pkg/deflate"
	"github.com/watt-toolkit/wsframe/pkg/wsframe"
)

// TestCompressedMessageSurvivesFragmentedDelivery exercises a full
// permessage-deflate round trip through the real Extension, with the
// client's single frame fed to the server's Processor split across many
// tiny Consume calls — the boundary where a per-call decompressor would
// treat each piece as its own self-contained DEFLATE stream and fail.
func TestCompressedMessageSurvivesFragmentedDelivery(t *testing.T) {
	compressor := deflate.New(true, flate.DefaultCompression)
	builder := wsframe.NewBuilder(false, true, compressor, wsframe.CryptoRandSource{})

	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 50)

	buffers := wsframe.NewPooledBufferManager()
	out := buffers.GetMessage(wsframe.OpcodeText, 0)
	defer buffers.Release(out)

	err := builder.PrepareDataFrame(wsframe.OutboundMessage{
		Opcode:              wsframe.OpcodeText,
		Payload:             payload,
		Fin:                 true,
		RequestsCompression: true,
	}, out)
	if err != nil {
		t.Fatalf("PrepareDataFrame() error = %v", err)
	}

	wire := append(append([]byte{}, out.Header()...), out.Payload()...)

	decompressor := deflate.New(true, flate.DefaultCompression)
	proc := wsframe.NewProcessor(true, wsframe.NewPooledBufferManager(), true, decompressor)

	var consumed int
	for consumed < len(wire) {
		end := consumed + 3
		if end > len(wire) {
			end = len(wire)
		}
		n, err := proc.Consume(wire[consumed:end])
		if err != nil {
			t.Fatalf("Consume() error = %v at offset %d", err, consumed)
		}
		consumed += n
		if n == 0 {
			t.Fatalf("Consume() made no progress at offset %d", consumed)
		}
	}

	if proc.State() != wsframe.StateReady {
		t.Fatalf("State() = %v, want StateReady", proc.State())
	}
	msg := proc.TakeMessage()
	if msg == nil {
		t.Fatalf("TakeMessage() = nil")
	}
	if !bytes.Equal(msg.Payload(), payload) {
		t.Errorf("decompressed payload mismatch: got %d bytes, want %d bytes", len(msg.Payload()), len(payload))
	}
}

// TestCompressedMessageAcrossContinuationFrames checks that a
// compressed message fragmented into multiple WebSocket frames (RSV1
// set only on the first) decompresses as a single shared stream, not
// one per frame.
func TestCompressedMessageAcrossContinuationFrames(t *testing.T) {
	compressor := deflate.New(true, flate.DefaultCompression)

	full := bytes.Repeat([]byte("fragmented-compressed-payload "), 100)
	compressed, err := compressor.Compress(full, nil)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	split := len(compressed) / 2
	key1 := [4]byte{1, 2, 3, 4}
	key2 := [4]byte{5, 6, 7, 8}

	part1 := append([]byte{}, compressed[:split]...)
	wsframe.MaskInPlace(part1, key1)
	var hdr1 [wsframe.MaxHeaderSize]byte
	frame1 := append(wsframe.PrepareHeader(hdr1[:], wsframe.OpcodeText, false, true, true, uint64(len(part1)), key1), part1...)

	part2 := append([]byte{}, compressed[split:]...)
	wsframe.MaskInPlace(part2, key2)
	var hdr2 [wsframe.MaxHeaderSize]byte
	frame2 := append(wsframe.PrepareHeader(hdr2[:], wsframe.OpcodeContinuation, true, false, true, uint64(len(part2)), key2), part2...)

	decompressor := deflate.New(true, flate.DefaultCompression)
	proc := wsframe.NewProcessor(true, wsframe.NewPooledBufferManager(), true, decompressor)

	if _, err := proc.Consume(frame1); err != nil {
		t.Fatalf("Consume(frame1) error = %v", err)
	}
	if proc.State() == wsframe.StateReady {
		t.Fatalf("message should not be ready after a non-FIN frame")
	}
	if _, err := proc.Consume(frame2); err != nil {
		t.Fatalf("Consume(frame2) error = %v", err)
	}
	if proc.State() != wsframe.StateReady {
		t.Fatalf("State() = %v, want StateReady after the FIN continuation", proc.State())
	}

	msg := proc.TakeMessage()
	if !bytes.Equal(msg.Payload(), full) {
		t.Errorf("decompressed payload mismatch across continuation frames: got %d bytes, want %d bytes", len(msg.Payload()), len(full))
	}
}
