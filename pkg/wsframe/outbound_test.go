package wsframe

import (
	"bytes"
	"errors"
	"testing"
)

var testBufferManager = NewPooledBufferManager()

type fixedMaskKeySource struct{ key [4]byte }

func (f fixedMaskKeySource) NextMaskKey() ([4]byte, error) { return f.key, nil }

func newServerBuilder() *Builder {
	return NewBuilder(true, false, nil, CryptoRandSource{})
}

func TestPrepareDataFrameServerUnmasked(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	err := b.PrepareDataFrame(OutboundMessage{Opcode: OpcodeText, Payload: []byte("hi"), Fin: true}, out)
	if err != nil {
		t.Fatalf("PrepareDataFrame() error = %v", err)
	}
	if !bytes.Equal(out.Payload(), []byte("hi")) {
		t.Errorf("Payload() = %q, want %q (server frames are sent unmasked)", out.Payload(), "hi")
	}
	hdr := decodeBasicHeader(out.Header()[0], out.Header()[1])
	if hdr.Masked {
		t.Errorf("server-built frame must not be masked")
	}
	if !hdr.Fin || hdr.Opcode != OpcodeText {
		t.Errorf("header = %+v, want Fin=true Opcode=Text", hdr)
	}
}

func TestPrepareDataFrameClientMasksPayload(t *testing.T) {
	client := NewBuilder(false, false, nil, fixedMaskKeySource{key: [4]byte{1, 2, 3, 4}})
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	err := client.PrepareDataFrame(OutboundMessage{Opcode: OpcodeBinary, Payload: []byte{0, 0, 0, 0}, Fin: true}, out)
	if err != nil {
		t.Fatalf("PrepareDataFrame() error = %v", err)
	}
	if bytes.Equal(out.Payload(), []byte{0, 0, 0, 0}) {
		t.Errorf("client frame payload should be masked, got raw zero bytes")
	}

	unmasked := make([]byte, len(out.Payload()))
	MaskExact(unmasked, out.Payload(), [4]byte{1, 2, 3, 4})
	if !bytes.Equal(unmasked, []byte{0, 0, 0, 0}) {
		t.Errorf("unmasking the output did not recover the original payload")
	}
}

func TestPrepareDataFrameRejectsControlOpcode(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)
	err := b.PrepareDataFrame(OutboundMessage{Opcode: OpcodePing, Payload: nil, Fin: true}, out)
	if !errors.Is(err, ErrInvalidArguments) {
		t.Errorf("err = %v, want ErrInvalidArguments", err)
	}
}

func TestPrepareDataFrameRejectsInvalidUTF8(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)
	err := b.PrepareDataFrame(OutboundMessage{Opcode: OpcodeText, Payload: []byte{0xFF}, Fin: true}, out)
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("err = %v, want ErrInvalidUTF8", err)
	}
}

func TestPreparePingPong(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	if err := b.PreparePing([]byte("ping-payload"), out); err != nil {
		t.Fatalf("PreparePing() error = %v", err)
	}
	hdr := decodeBasicHeader(out.Header()[0], out.Header()[1])
	if hdr.Opcode != OpcodePing || !hdr.Fin {
		t.Errorf("ping header = %+v", hdr)
	}

	if err := b.PreparePong([]byte("pong-payload"), out); err != nil {
		t.Fatalf("PreparePong() error = %v", err)
	}
	hdr = decodeBasicHeader(out.Header()[0], out.Header()[1])
	if hdr.Opcode != OpcodePong {
		t.Errorf("pong header = %+v", hdr)
	}
}

func TestPrepareControlFrameRejectsOversizedPayload(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)
	big := make([]byte, MaxControlPayload+1)

	err := b.PreparePing(big, out)
	if !errors.Is(err, ErrControlTooBig) {
		t.Errorf("err = %v, want ErrControlTooBig", err)
	}
}

func TestPrepareCloseExactBytes(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	if err := b.PrepareClose(CloseNormalClosure, "bye", out); err != nil {
		t.Fatalf("PrepareClose() error = %v", err)
	}

	wantPayload := []byte{0x03, 0xE8, 'b', 'y', 'e'} // 1000 big-endian, then reason
	if !bytes.Equal(out.Payload(), wantPayload) {
		t.Errorf("Payload() = %x, want %x", out.Payload(), wantPayload)
	}

	hdr := decodeBasicHeader(out.Header()[0], out.Header()[1])
	if hdr.Opcode != OpcodeClose || !hdr.Fin || int(hdr.PayloadCode7) != len(wantPayload) {
		t.Errorf("close header = %+v, want Opcode=Close Fin=true len=%d", hdr, len(wantPayload))
	}
}

func TestPrepareCloseNoStatus(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	if err := b.PrepareClose(NoStatus, "", out); err != nil {
		t.Fatalf("PrepareClose() error = %v", err)
	}
	if len(out.Payload()) != 0 {
		t.Errorf("Payload() = %x, want empty", out.Payload())
	}
}

func TestPrepareCloseRejectsReasonWithoutCode(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	err := b.PrepareClose(NoStatus, "bye", out)
	if !errors.Is(err, ErrReasonRequiresCode) {
		t.Errorf("err = %v, want ErrReasonRequiresCode", err)
	}
}

func TestPrepareCloseRejectsReservedCode(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	err := b.PrepareClose(CloseNoStatusReceived, "", out)
	if !errors.Is(err, ErrReservedCloseCode) {
		t.Errorf("err = %v, want ErrReservedCloseCode", err)
	}
}

func TestPrepareCloseRejectsReservedCode1004(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	err := b.PrepareClose(CloseReserved1004, "", out)
	if !errors.Is(err, ErrReservedCloseCode) {
		t.Errorf("err = %v, want ErrReservedCloseCode", err)
	}
}

func TestPrepareCloseRejectsOutOfRangeCode(t *testing.T) {
	b := newServerBuilder()
	out := testBufferManager.GetMessage(OpcodeText, 0)
	defer testBufferManager.Release(out)

	err := b.PrepareClose(CloseCode(2999), "", out)
	if !errors.Is(err, ErrInvalidCloseCode) {
		t.Errorf("err = %v, want ErrInvalidCloseCode", err)
	}
}
