package utils

import "github.com/google/uuid"

// NewID returns a unique session identifier.
func NewID() string {
	return uuid.NewString()
}
