package wsframe

// PreparedKey is a masking key transformed into the form the streaming
// masker expects: the raw 4-byte key plus a phase (0-3) recording how
// many bytes of the current frame's payload have already been masked,
// mod 4. Rotating the phase (rather than re-deriving a word-sized key
// from scratch) is what lets mask_stream resume correctly across
// buffer boundaries, per §4.2.
type PreparedKey struct {
	key   [4]byte
	phase uint8
}

// PrepareMaskingKey converts an on-the-wire masking key into the form
// used by MaskStream, at the start of a frame (phase 0).
func PrepareMaskingKey(raw [4]byte) PreparedKey {
	return PreparedKey{key: raw}
}

// MaskStream XORs buf in place against k, rotating the key by
// len(buf) mod 4 bytes. The returned PreparedKey continues the same
// logical key sequence on the next call, so that masking N bytes in
// one call produces the same result as masking them split across any
// number of calls (the streaming mask equivalence property in §8).
func MaskStream(buf []byte, k PreparedKey) PreparedKey {
	if len(buf) == 0 {
		return k
	}
	maskWords(buf, k.key, k.phase)
	k.phase = uint8((int(k.phase) + len(buf)) % 4)
	return k
}

// MaskExact XORs src into dst (which must have the same length) using
// raw starting at phase 0, for the common case where the whole payload
// is present contiguously (the outbound builder's use, per §4.2).
func MaskExact(dst, src []byte, raw [4]byte) {
	n := copy(dst, src)
	maskWords(dst[:n], raw, 0)
}

// MaskInPlace masks data in place with raw starting at phase 0. This is
// mask_exact's single-buffer form, used when the outbound builder
// already has the plaintext copied into the destination buffer.
func MaskInPlace(data []byte, raw [4]byte) {
	maskWords(data, raw, 0)
}

// rotateKey returns raw reordered so that rotated[0] is the byte that
// applies to the next output byte after `phase` bytes have already been
// masked. Masking is periodic with period 4, so offsetting the start
// phase is equivalent to cycling the key array.
func rotateKey(raw [4]byte, phase uint8) [4]byte {
	if phase == 0 {
		return raw
	}
	var out [4]byte
	for i := 0; i < 4; i++ {
		out[i] = raw[(int(phase)+i)%4]
	}
	return out
}
