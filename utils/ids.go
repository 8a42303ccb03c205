package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new random auction id
func GenerateID() string {
	return uuid.New().String()
}

// ValidID reports whether id has the shape GenerateID produces
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
