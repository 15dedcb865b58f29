package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateRequestID generates a unique request ID for tracking
func GenerateRequestID() string {
	return uuid.New().String()
}

// Contains checks if a string slice contains a specific string
func Contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Slugify lowercases a location name and joins its words with hyphens, the
// form most listing sites expect in their search URLs
// (e.g. "City Of Toronto" -> "city-of-toronto").
func Slugify(location string) string {
	s := strings.ToLower(strings.TrimSpace(location))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), "-")
}
