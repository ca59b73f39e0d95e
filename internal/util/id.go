package util

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7 string. Falls back to a random UUIDv4
// if the clock sequence cannot be read.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
