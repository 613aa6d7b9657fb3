//go:build strict_masking

package wsframe

// maskWords is the STRICT_MASKING variant from §6: byte-at-a-time XOR,
// with observably identical output to the word-wise path in
// mask_fast.go. Kept deliberately simple (no machine-word tricks) so it
// can serve as ground truth when testing the fast path for equivalence.
func maskWords(data []byte, key [4]byte, phase uint8) {
	for i := range data {
		data[i] ^= key[(int(phase)+i)%4]
	}
}
