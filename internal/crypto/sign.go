package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// SignatureLength is the size of a compact recoverable signature.
const SignatureLength = 65

// ErrNonCanonical is returned when a signature would be rejected by the chain.
// Signing is deterministic, so callers must change the digest (for example by
// bumping the transaction expiration) and sign again.
var ErrNonCanonical = errors.New("non-canonical signature")

// SignDigest signs a 32-byte digest and returns a compact recoverable signature.
func (k *PrivateKey) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := ecdsa.SignCompact(k.key, digest, true)
	if err != nil {
		return nil, err
	}
	if !IsCanonical(sig) {
		return sig, ErrNonCanonical
	}
	return sig, nil
}

// IsCanonical applies the chain's canonical signature rule to r and s.
func IsCanonical(sig []byte) bool {
	if len(sig) != SignatureLength {
		return false
	}
	return sig[1]&0x80 == 0 &&
		!(sig[1] == 0 && sig[2]&0x80 == 0) &&
		sig[33]&0x80 == 0 &&
		!(sig[33] == 0 && sig[34]&0x80 == 0)
}

// RecoverPublicKey returns the key that produced sig over digest.
func RecoverPublicKey(sig, digest []byte) (PublicKey, error) {
	pub, _, err := ecdsa.RecoverCompact(sig, digest)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{key: pub, prefix: DefaultAddressPrefix}, nil
}
