package middleware

import (
	"regexp"
	"strings"
	"unicode"
)

// maxFieldLength caps numeric form fields; no legitimate number needs more
const maxFieldLength = 64

var validUsername = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SanitizeIdentity cleans an opaque user identity received from the host
func SanitizeIdentity(id string) string {
	id = strings.TrimSpace(id)
	return removeControlChars(id)
}

// SanitizeField cleans the raw text of a numeric form field.
// It does not validate the number; parsing decides that.
func SanitizeField(value string) string {
	value = removeControlChars(value)
	if len(value) > maxFieldLength {
		value = value[:maxFieldLength]
	}
	return value
}

// SanitizeUsername sanitizes a username
func SanitizeUsername(username string) string {
	// Remove whitespace
	username = strings.TrimSpace(username)

	// Remove control characters (null bytes included)
	username = removeControlChars(username)

	// Limit length
	if len(username) > maxIdentityLength {
		username = username[:maxIdentityLength]
	}

	return username
}

// ValidateUsername validates a username format
func ValidateUsername(username string) bool {
	// Username should be 3-100 characters
	if len(username) < 3 || len(username) > maxIdentityLength {
		return false
	}

	// Username should only contain alphanumeric characters, underscores, and hyphens
	return validUsername.MatchString(username)
}

// SanitizePassword sanitizes a password (minimal sanitization to preserve special chars)
func SanitizePassword(password string) string {
	var result strings.Builder
	for _, r := range password {
		if !unicode.IsControl(r) || r == '\t' || r == '\n' || r == '\r' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ValidatePassword validates password requirements
func ValidatePassword(password string) bool {
	return len(password) >= 6 && len(password) <= 128
}

// removeControlChars removes control characters from a string
func removeControlChars(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
