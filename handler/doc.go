// Package handler routes turns to type-specific application hooks. The
// base ActivityHandler covers the common activity types; package teams
// layers the Teams invoke dispatch on top of it.
package handler
