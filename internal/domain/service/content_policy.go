package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxMessageLength = 2000

var (
	ErrInvalidContent = errors.New("invalid message content")
	ErrEmptyContent   = fmt.Errorf("%w: message is empty", ErrInvalidContent)
	ErrContentTooLong = fmt.Errorf("%w: message exceeds %d characters", ErrInvalidContent, MaxMessageLength)
)

var (
	scriptTagPattern    = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	javascriptPattern   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=\s*(?:"[^"]*"|'[^']*')`)
)

// SanitizeMessage strips executable markup from raw message text.
// Stripping repeats until nothing changes, so the result is stable under re-sanitization.
func SanitizeMessage(raw string) string {
	s := raw
	for {
		next := scriptTagPattern.ReplaceAllString(s, "")
		next = javascriptPattern.ReplaceAllString(next, "")
		next = eventHandlerPattern.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == s {
			return s
		}
		s = next
	}
}

// SanitizeAndValidate returns the storable form of raw or an ErrInvalidContent error.
func SanitizeAndValidate(raw string) (string, error) {
	content := SanitizeMessage(raw)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", ErrContentTooLong
	}
	return content, nil
}
