package core

import "github.com/google/uuid"

// NewID returns a fresh UUID v4 string, the identifier scheme used for
// Stream, Session, and Sink ids throughout the core.
func NewID() string {
	return uuid.NewString()
}
