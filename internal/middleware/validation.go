package middleware

import (
	"errors"
	"unicode/utf8"
)

const (
	maxTextLength        = 4096
	maxDisplayNameLength = 64
)

// ValidateText validates inbound message text.
func ValidateText(text string) error {
	if len(text) == 0 {
		return errors.New("text cannot be empty")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return errors.New("text exceeds maximum length")
	}
	return nil
}

// ValidateUserID validates a chat user ID.
func ValidateUserID(id int64) error {
	if id <= 0 {
		return errors.New("user_id must be positive")
	}
	return nil
}

// ValidateDisplayName validates an optional display name.
func ValidateDisplayName(name string) error {
	if !utf8.ValidString(name) {
		return errors.New("display_name must be valid UTF-8")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return errors.New("display_name exceeds maximum length")
	}
	return nil
}
