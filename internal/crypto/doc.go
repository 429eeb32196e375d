// Package crypto exposes the minimal key primitives used by steemauth.
//
// Contents
//
//   - WIF private key decoding (ParseWIF) and encoding (PrivateKey.WIF)
//   - Chain public key encoding with address prefix (PublicKey.String,
//     ParsePublicKey)
//   - Compact, canonical secp256k1 signatures over a digest (SignDigest,
//     IsCanonical)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Key generation is deliberately absent: keys are always supplied by the user
// or by a signer. Callers should treat private keys as sensitive and call
// PrivateKey.Zero when done.
package crypto
