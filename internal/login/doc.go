// Package login runs the delegation protocol: the five-step exchange that
// converts a bot's remote signing capability into a time-boxed delegation
// chain plus a bearer token.
//
// Every run is independent: the engine holds no mutable state between
// attempts and its only side effect is the SessionRecord it returns. Steps
// are strictly sequential with no backward transition; a failure at any
// step aborts the attempt with a typed StepError and the caller decides
// whether to retry the whole sequence.
package login
