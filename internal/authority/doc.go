// Package authority implements the consumed remote interfaces: the signing
// authority that holds bot keys and performs threshold signing, the
// challenge authority that issues login challenges and delegations, and the
// trading REST API. All clients speak JSON over HTTP with per-call
// timeouts, client-side rate limiting, and responses mapped onto the typed
// error taxonomy so malformed or rejected responses can never be mistaken
// for success.
package authority
