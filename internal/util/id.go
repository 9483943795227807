package util

import "github.com/google/uuid"

// NewID returns a fresh random identifier for synthetic activities.
func NewID() string {
	return uuid.NewString()
}
