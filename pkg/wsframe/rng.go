package wsframe

import "crypto/rand"

// MaskKeySource is the RNG collaborator (§6): next_mask_key() must
// produce a cryptographically unpredictable 32-bit value per masked
// frame. A predictable key defeats the (weak) defense masking provides
// against naive path-injection proxies — see §9's resolved Open
// Question — so the only implementation this package ships reads from
// crypto/rand, never a stub.
type MaskKeySource interface {
	NextMaskKey() ([4]byte, error)
}

// CryptoRandSource is the default MaskKeySource, backed by crypto/rand.
type CryptoRandSource struct{}

// NextMaskKey returns 4 cryptographically random bytes.
func (CryptoRandSource) NextMaskKey() ([4]byte, error) {
	var key [4]byte
	_, err := rand.Read(key[:])
	return key, err
}
