package wsframe

import "encoding/binary"

// OutboundMessage is the outbound builder's input: a complete,
// unmasked, uncompressed payload plus the framing flags the caller
// wants on the wire (prepare_data_frame's `in`, §4.7).
type OutboundMessage struct {
	Opcode              Opcode
	Payload             []byte
	Fin                 bool
	RequestsCompression bool
}

// Builder is the outbound frame builder of §4.7. It holds no per-
// connection state of its own beyond the collaborators it was built
// with; one Builder may serialize frames for many connections as long
// as IsServer/CompressionEnabled are the same for all of them.
type Builder struct {
	IsServer           bool
	CompressionEnabled bool
	Compressor         Compressor
	MaskKeys           MaskKeySource
}

// NewBuilder constructs an outbound Builder.
func NewBuilder(isServer bool, compressionEnabled bool, compressor Compressor, maskKeys MaskKeySource) *Builder {
	return &Builder{
		IsServer:           isServer,
		CompressionEnabled: compressionEnabled,
		Compressor:         compressor,
		MaskKeys:           maskKeys,
	}
}

// PrepareDataFrame implements prepare_data_frame: it validates in,
// optionally compresses and masks its payload, and writes a ready-to-
// send message into out. out is reset and reused; it is legal to pass
// the same *MessageBuffer across repeated calls.
func (b *Builder) PrepareDataFrame(in OutboundMessage, out *MessageBuffer) error {
	if in.Opcode.IsControl() {
		return ErrInvalidArguments
	}
	if in.Opcode == OpcodeText {
		var v UTF8Validator
		if !v.Decode(in.Payload) || !v.Complete() {
			return ErrInvalidUTF8
		}
	}

	masked := !b.IsServer
	compressed := b.CompressionEnabled && in.RequestsCompression && b.Compressor != nil

	out.reset()
	out.opcode = in.Opcode
	out.fin = in.Fin

	var maskKey [4]byte
	if masked {
		var err error
		maskKey, err = b.MaskKeys.NextMaskKey()
		if err != nil {
			return err
		}
	}

	if compressed {
		compressedPayload, err := b.Compressor.Compress(in.Payload, out.bb.B[:0])
		if err != nil {
			return err
		}
		out.bb.B = compressedPayload
		if masked {
			MaskInPlace(out.bb.B, maskKey)
		}
	} else {
		out.bb.B = append(out.bb.B[:0], in.Payload...)
		if masked {
			MaskInPlace(out.bb.B, maskKey)
		}
	}

	var hdr [MaxHeaderSize]byte
	header := PrepareHeader(hdr[:], in.Opcode, in.Fin, compressed, masked, uint64(len(out.bb.B)), maskKey)
	out.header = append(out.header[:0], header...)
	out.prepared = true
	out.compressed = compressed
	return nil
}

// prepareControlFrame is the shared helper behind PreparePing,
// PreparePong, and PrepareClose: reject non-control opcodes, reject
// oversized payloads, always FIN=1, never compressed.
func (b *Builder) prepareControlFrame(opcode Opcode, payload []byte, out *MessageBuffer) error {
	if !opcode.IsControl() {
		return ErrInvalidArguments
	}
	if len(payload) > MaxControlPayload {
		return ErrControlTooBig
	}

	masked := !b.IsServer
	out.reset()
	out.opcode = opcode
	out.fin = true

	var maskKey [4]byte
	if masked {
		var err error
		maskKey, err = b.MaskKeys.NextMaskKey()
		if err != nil {
			return err
		}
		out.bb.B = append(out.bb.B[:0], payload...)
		MaskInPlace(out.bb.B, maskKey)
	} else {
		out.bb.B = append(out.bb.B[:0], payload...)
	}

	var hdr [MaxHeaderSize]byte
	header := PrepareHeader(hdr[:], opcode, true, false, masked, uint64(len(payload)), maskKey)
	out.header = append(out.header[:0], header...)
	out.prepared = true
	return nil
}

// PreparePing builds a Ping control frame.
func (b *Builder) PreparePing(payload []byte, out *MessageBuffer) error {
	return b.prepareControlFrame(OpcodePing, payload, out)
}

// PreparePong builds a Pong control frame.
func (b *Builder) PreparePong(payload []byte, out *MessageBuffer) error {
	return b.prepareControlFrame(OpcodePong, payload, out)
}

// PrepareClose builds a Close control frame with the status code and
// optional human-readable reason of §4.7. code == NoStatus and reason
// == "" together produce an empty Close payload.
func (b *Builder) PrepareClose(code CloseCode, reason string, out *MessageBuffer) error {
	if code != NoStatus {
		if !code.validOnWire() {
			if code == CloseReserved1004 || code == CloseNoStatusReceived || code == CloseAbnormalClosure || code == CloseTLSHandshake {
				return ErrReservedCloseCode
			}
			return ErrInvalidCloseCode
		}
	} else if reason != "" {
		return ErrReasonRequiresCode
	}
	if len(reason) > MaxControlPayload-2 {
		return ErrControlTooBig
	}

	var payload []byte
	if code != NoStatus {
		payload = make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(payload[0:2], uint16(code))
		copy(payload[2:], reason)
	}

	return b.prepareControlFrame(OpcodeClose, payload, out)
}
