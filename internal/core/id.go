package core

import "github.com/google/uuid"

// GenerateID returns an opaque unique identifier.
func GenerateID() string {
	return uuid.NewString()
}
