// Package state layers durable per-conversation and per-user data on top
// of the storage contract. A Scope loads one JSON object into the turn's
// cache, hands out typed property accessors over it, and writes it back
// only when the content hash changed since load.
package state
