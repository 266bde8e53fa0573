package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInvalidInput indicates the input failed validation
	ErrInvalidInput = errors.New("invalid input")

	// Target IDs follow kubernetes-style naming: lowercase alphanumeric
	// segments separated by hyphens, 1-128 chars
	targetIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,126}[a-z0-9])?$`)
)

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	// Trim whitespace
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters except newline and tab
	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateTargetID checks if a target identifier is valid
func ValidateTargetID(id string) error {
	id = SanitizeString(id)

	if id == "" {
		return errors.New("target id cannot be empty")
	}

	if len(id) > 128 {
		return errors.New("target id must not exceed 128 characters")
	}

	if !targetIDRegex.MatchString(id) {
		return errors.New("target id must be lowercase alphanumeric with hyphens, starting and ending with an alphanumeric character")
	}

	return nil
}

// ValidateUsername checks if a username is valid
func ValidateUsername(username string) error {
	username = SanitizeString(username)

	if username == "" {
		return errors.New("username cannot be empty")
	}

	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}

	if len(username) > 50 {
		return errors.New("username must not exceed 50 characters")
	}

	return nil
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	if len(password) > 128 {
		return errors.New("password must not exceed 128 characters")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSpecial {
		return errors.New("password must contain at least one special character")
	}

	return nil
}

// ValidateReplicaBounds checks if min/max replica counts are valid
func ValidateReplicaBounds(min, max int) error {
	if min < 1 {
		return errors.New("minimum replicas must be at least 1")
	}

	if max < min {
		return errors.New("maximum replicas must be greater than or equal to minimum replicas")
	}

	if max > 1000 {
		return errors.New("maximum replicas cannot exceed 1000")
	}

	return nil
}
