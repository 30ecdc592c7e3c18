package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives stable device fingerprints from request
// attributes. The digest is keyed so fingerprints cannot be
// precomputed from known address and agent pairs.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter creates a new Fingerprinter. Oversized keys are
// folded down to the digest size the MAC accepts.
func NewFingerprinter(key string) *Fingerprinter {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}

	return &Fingerprinter{key: k}
}

// Fingerprint returns a hex digest identifying one device
func (f *Fingerprinter) Fingerprint(ipAddress, userAgent string) string {
	h, _ := blake2b.New256(f.key) // key length is clamped in NewFingerprinter
	h.Write([]byte(ipAddress))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))

	return hex.EncodeToString(h.Sum(nil))
}
