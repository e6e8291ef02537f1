// Package keys provides local-first signing keys implementing the ledger
// Signer capability.
//
// The primary scheme is ed25519 over a sha256 digest. A dilithium3 signer is
// also available for chains that accept post-quantum signatures. Account
// addresses are the base58 encoding of the public key.
//
// The filesystem-backed keystore is a development convenience, not a
// production key-management system: production deployments are expected to
// supply their own Signer implementation at the boundary.
package keys
