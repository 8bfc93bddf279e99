package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	userIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	recordIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidateScanType checks the scan type against the allowed list
func ValidateScanType(scanType string) error {
	switch strings.ToLower(strings.TrimSpace(scanType)) {
	case "quick", "full", "custom":
		return nil
	}
	return fmt.Errorf("invalid scan type: %s (allowed: quick, full, custom)", scanType)
}

// ValidatePath rejects traversal and shell metacharacters in a custom scan
// path or quarantine file path. Empty is allowed; callers decide if it is required.
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if len(path) > 4096 {
		return fmt.Errorf("path too long")
	}

	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("path traversal detected")
		}
	}

	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(path, d) {
			return fmt.Errorf("invalid characters in path")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateUserID validates user ID format
func ValidateUserID(user string) error {
	if user == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if !userIDPattern.MatchString(user) {
		return fmt.Errorf("invalid user ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateRecordID checks scan and threat ids taken from the URL.
func ValidateRecordID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}
	if !recordIDPattern.MatchString(id) {
		return fmt.Errorf("invalid %s ID format", kind)
	}
	return nil
}
