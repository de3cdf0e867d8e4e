// Package session caches authenticated sessions, one record per bot.
//
// A lookup that finds a live record answers from disk with zero authority
// calls. A missing, expired or corrupt record triggers exactly one
// delegation protocol run, serialized per bot; distinct bots refresh fully
// in parallel. Expiry is judged as issued_at + lifetime so a skewed wall
// clock cannot stretch a session past what the authority granted.
package session
