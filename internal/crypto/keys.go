package crypto

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // the chain's key checksum is RIPEMD-160
)

const (
	// DefaultAddressPrefix is the public key prefix of the Steem main network.
	DefaultAddressPrefix = "STM"

	wifVersion     = 0x80
	checksumLength = 4
)

var (
	// ErrInvalidWIF is returned for a malformed private key string.
	ErrInvalidWIF = errors.New("invalid WIF private key")
	// ErrInvalidPublicKey is returned for a malformed public key string.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// PrivateKey is a secp256k1 private key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// ParseWIF decodes a Wallet Import Format private key.
func ParseWIF(wif string) (*PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(wif))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}
	defer Wipe(raw)
	if len(raw) != 1+32+checksumLength || raw[0] != wifVersion {
		return nil, ErrInvalidWIF
	}
	payload, sum := raw[:1+32], raw[1+32:]
	if !bytes.Equal(doubleSHA256(payload)[:checksumLength], sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidWIF)
	}
	priv, _ := btcec.PrivKeyFromBytes(payload[1:])
	return &PrivateKey{key: priv}, nil
}

// WIF encodes the key in Wallet Import Format.
func (k *PrivateKey) WIF() string {
	payload := append([]byte{wifVersion}, k.key.Serialize()...)
	defer Wipe(payload)
	out := append(payload, doubleSHA256(payload)[:checksumLength]...)
	defer Wipe(out)
	return base58.Encode(out)
}

// PublicKey returns the matching public key.
func (k *PrivateKey) PublicKey() PublicKey {
	return PublicKey{key: k.key.PubKey(), prefix: DefaultAddressPrefix}
}

// Zero wipes the key from memory.
func (k *PrivateKey) Zero() {
	if k != nil && k.key != nil {
		k.key.Zero()
	}
}

// PublicKey is a secp256k1 public key with the chain's address prefix.
type PublicKey struct {
	key    *btcec.PublicKey
	prefix string
}

// ParsePublicKey decodes "<prefix><base58(compressed || ripemd160[:4])>".
func ParsePublicKey(s, prefix string) (PublicKey, error) {
	if !strings.HasPrefix(s, prefix) {
		return PublicKey{}, fmt.Errorf("%w: missing prefix %q", ErrInvalidPublicKey, prefix)
	}
	raw, err := base58.Decode(s[len(prefix):])
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != 33+checksumLength {
		return PublicKey{}, ErrInvalidPublicKey
	}
	data, sum := raw[:33], raw[33:]
	if !bytes.Equal(ripemd(data)[:checksumLength], sum) {
		return PublicKey{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidPublicKey)
	}
	pub, err := btcec.ParsePubKey(data)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKey{key: pub, prefix: prefix}, nil
}

// WithPrefix returns the same key rendered with another network prefix.
func (p PublicKey) WithPrefix(prefix string) PublicKey {
	p.prefix = prefix
	return p
}

// Bytes returns the compressed encoding.
func (p PublicKey) Bytes() []byte { return p.key.SerializeCompressed() }

// String renders the key the way the chain does.
func (p PublicKey) String() string {
	data := p.key.SerializeCompressed()
	return p.prefix + base58.Encode(append(data, ripemd(data)[:checksumLength]...))
}

// Equal compares the underlying points, ignoring prefixes.
func (p PublicKey) Equal(o PublicKey) bool {
	if p.key == nil || o.key == nil {
		return false
	}
	return p.key.IsEqual(o.key)
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

func ripemd(b []byte) []byte {
	h := ripemd160.New()
	_, _ = h.Write(b)
	return h.Sum(nil)
}
