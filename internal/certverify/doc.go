// Package certverify validates certified responses from the remote
// authorities: a CBOR-encoded labeled hash tree whose root is covered by a
// threshold signature from the authority's distributed signing key.
//
// Verification is an optional, read-side control. It protects query
// responses against network-level tampering; state-changing calls remain
// protected by the authority's own consensus signatures regardless. When
// verification is requested but no threshold backend is registered, setup
// fails fast: silently skipping an explicitly requested security control
// would be a correctness bug.
package certverify
