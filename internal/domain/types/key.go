package types

import "errors"

// KeyPurpose selects the salt variant a symmetric key was derived with.
type KeyPurpose int

const (
	// PurposePassword derives from a password.
	PurposePassword KeyPurpose = iota
	// PurposePIN derives from a short PIN and uses a distinct salt.
	PurposePIN
)

// Key is a derived symmetric key for at-rest encryption of a private key.
//
// It lives in memory only: it refuses JSON encoding and never prints its bytes.
type Key struct {
	Username Username
	Purpose  KeyPurpose
	Bytes    [32]byte
}

var errKeySerialization = errors.New("symmetric key must not be serialized")

// String hides the key material.
func (k Key) String() string { return "Key(" + k.Username.String() + ")" }

// GoString hides the key material from %#v.
func (k Key) GoString() string { return k.String() }

// MarshalJSON always fails.
func (k Key) MarshalJSON() ([]byte, error) { return nil, errKeySerialization }

// MarshalText always fails.
func (k Key) MarshalText() ([]byte, error) { return nil, errKeySerialization }
