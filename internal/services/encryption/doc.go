// Package encryption derives the process-wide symmetric key and protects
// private keys at rest.
//
// Keys are derived with PBKDF2-HMAC-SHA256 from a user secret (password or
// PIN) salted with the username and the application namespace. Ciphertexts are
// self-describing: a random ChaCha20-Poly1305 nonce is prepended and the
// whole blob is base64 encoded so it fits string-only storage.
//
// Exactly one key is current at a time. Every DeriveKey replaces it and
// ClearKey drops it. Callers that must not observe a swap mid-operation take a
// snapshot with Current and use EncryptWith/DecryptWith.
package encryption
