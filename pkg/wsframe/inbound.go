package wsframe

// ProcessorState is the inbound state machine's state, per §3.
type ProcessorState int

const (
	StateHeaderBasic ProcessorState = iota
	StateHeaderExtended
	StateExtension
	StateApplication
	StateReady
	StateFatalError
)

// messageMetadata is the per-in-flight-message slot described in §3:
// the output buffer, the prepared mask (re-derived at every frame
// start but rotated within a frame), the UTF-8 validator state, and
// the opcode. The processor keeps exactly one for data messages and
// one for control messages (control frames are never fragmented, so
// the control slot never outlives a single frame).
type messageMetadata struct {
	active      bool
	opcode      Opcode
	buf         *MessageBuffer
	validator   UTF8Validator
	preparedKey PreparedKey
	firstRSV1   bool
	inflater    Inflater
}

// Processor is the inbound byte-stream-to-messages state machine
// (§4.6). It performs no I/O: Consume is a pure function from (state,
// input bytes) to (new state, bytes consumed, error).
type Processor struct {
	IsServer           bool
	Buffers            BufferManager
	CompressionEnabled bool
	Compressor         Compressor

	state       ProcessorState
	bytesNeeded int
	cursor      int

	basicBuf [2]byte
	basic    BasicHeader

	extBuf   [12]byte
	extended ExtendedHeader

	data    messageMetadata
	ctrl    messageMetadata
	current *messageMetadata
	ready   *MessageBuffer

	err error
}

// NewProcessor constructs a Processor. buffers must be non-nil; a
// Compressor is only consulted when compressionEnabled is true.
func NewProcessor(isServer bool, buffers BufferManager, compressionEnabled bool, compressor Compressor) *Processor {
	return &Processor{
		IsServer:           isServer,
		Buffers:            buffers,
		CompressionEnabled: compressionEnabled,
		Compressor:         compressor,
		state:              StateHeaderBasic,
		bytesNeeded:        2,
	}
}

// State returns the processor's current state.
func (p *Processor) State() ProcessorState { return p.state }

// Err returns the error that drove the processor into FATAL_ERROR, or
// nil if it has not failed.
func (p *Processor) Err() error { return p.err }

// Consume feeds input to the processor and returns the number of bytes
// actually consumed. The processor stops consuming when it reaches
// READY (a message is waiting for TakeMessage) or FATAL_ERROR (sticky;
// no further bytes are ever consumed), or when input is exhausted and
// no substate can advance without more bytes.
func (p *Processor) Consume(input []byte) (int, error) {
	i := 0
	for p.state != StateReady && p.state != StateFatalError && (i < len(input) || p.bytesNeeded == 0) {
		switch p.state {
		case StateHeaderBasic:
			if p.bytesNeeded > 0 {
				n := copy(p.basicBuf[p.cursor:p.cursor+p.bytesNeeded], input[i:])
				p.cursor += n
				i += n
				p.bytesNeeded -= n
				if p.bytesNeeded > 0 {
					break
				}
			}
			p.basic = decodeBasicHeader(p.basicBuf[0], p.basicBuf[1])
			if err := p.validateBasicHeader(); err != nil {
				p.fail(err)
				break
			}
			p.bytesNeeded = p.basic.HeaderLen() - 2
			p.cursor = 0
			p.state = StateHeaderExtended

		case StateHeaderExtended:
			if p.bytesNeeded > 0 {
				n := copy(p.extBuf[p.cursor:p.cursor+p.bytesNeeded], input[i:])
				p.cursor += n
				i += n
				p.bytesNeeded -= n
				if p.bytesNeeded > 0 {
					break
				}
			}
			p.extended = decodeExtendedHeader(p.basic, p.extBuf[:p.cursor])
			if err := p.validateExtendedHeader(); err != nil {
				p.fail(err)
				break
			}
			if err := p.beginFrame(); err != nil {
				p.fail(err)
				break
			}
			p.state = StateExtension

		case StateExtension:
			// Reserved pass-through: no extension currently consumes
			// header bytes of its own.
			p.state = StateApplication

		case StateApplication:
			avail := len(input) - i
			n := p.bytesNeeded
			if avail < n {
				n = avail
			}
			chunk := input[i : i+n]
			if err := p.consumePayload(chunk); err != nil {
				p.fail(err)
				break
			}
			i += n
			p.bytesNeeded -= n
			if p.bytesNeeded == 0 {
				if err := p.finishFrame(); err != nil {
					p.fail(err)
					break
				}
			}
		}
	}
	return i, p.err
}

func (p *Processor) fail(err error) {
	p.err = err
	p.state = StateFatalError
	ObserveFatalError(err)
}

// validateBasicHeader implements the Basic header validation rules of
// §4.6, including the control_too_big check the 7-bit length code
// alone already proves (scenario 6: code 126 is rejected before any
// extended length byte is read).
func (p *Processor) validateBasicHeader() error {
	b := p.basic

	if b.Opcode.isReserved() {
		return ErrInvalidOpcode
	}
	if b.RSV2 || b.RSV3 {
		return ErrInvalidRSVBit
	}
	if b.RSV1 && (b.Opcode.IsControl() || b.Opcode == OpcodeContinuation || !p.CompressionEnabled) {
		return ErrInvalidRSVBit
	}

	if b.Opcode.IsControl() {
		if !b.Fin {
			return ErrFragmentedControl
		}
		if b.PayloadCode7 > MaxControlPayload {
			return ErrControlTooBig
		}
	} else if b.Opcode == OpcodeContinuation {
		if !p.data.active {
			return ErrInvalidContinuation
		}
	} else {
		if p.data.active {
			return ErrInvalidContinuation
		}
	}

	if p.IsServer && !b.Masked {
		return ErrMaskingRequired
	}
	if !p.IsServer && b.Masked {
		return ErrMaskingForbidden
	}
	return nil
}

// validateExtendedHeader implements the non-minimal-encoding and
// requires-64-bit checks of §4.6.
func (p *Processor) validateExtendedHeader() error {
	switch p.basic.PayloadCode7 {
	case 126:
		if p.extended.Length <= 125 {
			return ErrNonMinimalEncoding
		}
	case 127:
		if p.extended.Length <= 0xFFFF {
			return ErrNonMinimalEncoding
		}
		if p.extended.Length&(1<<63) != 0 {
			return ErrRequires64Bit
		}
	}
	return nil
}

// beginFrame locates (or starts) the MessageMetadata slot for the
// frame whose header has just finished decoding, and sets up the
// prepared masking key for this frame (re-derived every frame, per
// §4.6.1's design rationale).
func (p *Processor) beginFrame() error {
	var meta *messageMetadata
	if p.basic.Opcode.IsControl() {
		meta = &p.ctrl
		p.releaseIfActive(meta)
		meta.active = true
		meta.opcode = p.basic.Opcode
		meta.validator = UTF8Validator{}
		meta.firstRSV1 = false
		meta.buf = p.Buffers.GetMessage(meta.opcode, int(p.extended.Length))
	} else if p.basic.Opcode == OpcodeContinuation {
		meta = &p.data // already active, validated in validateBasicHeader
	} else {
		meta = &p.data
		p.releaseIfActive(meta)
		meta.active = true
		meta.opcode = p.basic.Opcode
		meta.validator = UTF8Validator{}
		meta.firstRSV1 = p.basic.RSV1
		meta.inflater = nil
		if meta.firstRSV1 && p.CompressionEnabled {
			meta.inflater = p.Compressor.NewInflater()
		}
		hint := int(p.extended.Length)
		if hint > 1<<20 {
			hint = 1 << 20
		}
		meta.buf = p.Buffers.GetMessage(meta.opcode, hint)
	}

	if p.basic.Masked {
		meta.preparedKey = PrepareMaskingKey(p.extended.MaskKey)
	}
	p.current = meta
	p.bytesNeeded = int(p.extended.Length)
	return nil
}

// releaseIfActive guards against leaking a buffer if a slot is somehow
// reused while still marked active (defensive; should not occur given
// validateBasicHeader's continuation checks).
func (p *Processor) releaseIfActive(meta *messageMetadata) {
	if meta.active && meta.buf != nil {
		p.Buffers.Release(meta.buf)
	}
}

// consumePayload runs the payload pipeline of §4.6.1 over one chunk:
// unmask, then either feed the shared per-message inflater (compressed
// messages) or append directly and validate UTF-8 incrementally
// (uncompressed messages). A message's compressed bytes span however
// many frames and Consume calls the wire happened to split it into, so
// decompression itself only runs once, in finishFrame, once the whole
// stream is in hand.
func (p *Processor) consumePayload(chunk []byte) error {
	cur := p.current

	if p.basic.Masked {
		cur.preparedKey = MaskStream(chunk, cur.preparedKey)
	}

	if p.CompressionEnabled && cur.firstRSV1 {
		if err := cur.inflater.Write(chunk); err != nil {
			return ErrInvalidPayload
		}
		return nil
	}

	before := len(cur.buf.Payload())
	cur.buf.Append(chunk)
	if cur.opcode == OpcodeText {
		appended := cur.buf.Payload()[before:]
		if !cur.validator.Decode(appended) {
			return ErrInvalidUTF8
		}
	}
	return nil
}

// finishFrame runs the end-of-frame branch of APPLICATION: on FIN, it
// validates end-of-message state and transitions to READY; otherwise
// it resets per-frame header state and waits for the next frame of the
// same (still in-flight) message.
func (p *Processor) finishFrame() error {
	cur := p.current
	ObserveFrame(p.basic.Opcode)

	if p.basic.Fin {
		if cur.firstRSV1 && p.CompressionEnabled {
			decompressed, err := cur.inflater.Close(cur.buf.Payload())
			if err != nil {
				return ErrInvalidPayload
			}
			cur.buf.bb.B = decompressed
			cur.inflater = nil
			if cur.opcode == OpcodeText {
				cur.validator = UTF8Validator{}
				cur.validator.Decode(cur.buf.Payload())
			}
		}
		if cur.opcode == OpcodeText && !cur.validator.Complete() {
			return ErrInvalidUTF8
		}
		cur.buf.SetHeader(cur.opcode, true)
		cur.buf.SetPrepared(true)
		cur.buf.SetCompressed(cur.firstRSV1)
		if cur == &p.data {
			p.data.active = false
		} else {
			p.ctrl.active = false
		}
		p.ready = cur.buf
		p.current = nil
		p.state = StateReady
		ObserveMessage(cur.opcode)
		return nil
	}

	p.bytesNeeded = 2
	p.cursor = 0
	p.state = StateHeaderBasic
	return nil
}

// TakeMessage transfers ownership of the completed message's buffer to
// the caller and returns the processor to HEADER_BASIC. It returns nil
// if the processor is not in READY. The caller is responsible for
// eventually calling BufferManager.Release on the returned buffer.
func (p *Processor) TakeMessage() *MessageBuffer {
	if p.state != StateReady {
		return nil
	}
	msg := p.ready
	p.ready = nil
	p.bytesNeeded = 2
	p.cursor = 0
	p.state = StateHeaderBasic
	return msg
}
