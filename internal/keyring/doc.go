// Package keyring owns the root keypair on durable storage.
//
// The root key is derived from a BIP39 mnemonic (seed -> HKDF-SHA256 ->
// Ed25519 seed) and stored as a single owner-only PEM file. It provides
// sign/verify primitives to higher layers; the private material never
// leaves this package beyond the scope of a single signing operation.
package keyring
