package crypto

import (
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a BLAKE2b-256 digest of a value's canonical JSON encoding.
type Fingerprint [blake2b.Size256]byte

// FingerprintOf digests v. Map keys are sorted by encoding/json, so equal
// values always yield equal fingerprints.
func FingerprintOf(v any) (Fingerprint, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: %w", err)
	}
	return blake2b.Sum256(b), nil
}

func (f Fingerprint) String() string { return fmt.Sprintf("%x", f[:8]) }
