package model

import (
	"regexp"
	"strings"

	"streamer-live-bot/internal/domain"
)

const (
	HandleMinLen   = 2
	HandleMaxLen   = 30
	FreeTextMaxLen = 50
)

var (
	handleRe   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	freeTextRe = regexp.MustCompile(`^[a-zA-Z0-9_@.-]+$`)
)

// NormalizeHandle strips one leading '@' and surrounding spaces.
func NormalizeHandle(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "@")
}

// ValidateHandle checks a normalized handle. Case is preserved.
func ValidateHandle(handle string) error {
	switch n := len(handle); {
	case n == 0:
		return &domain.ValidationError{Field: "handle", Value: handle, Reason: "handle is empty"}
	case n < HandleMinLen || n > HandleMaxLen:
		return &domain.ValidationError{Field: "handle", Value: handle, Reason: "handle must be 2 to 30 characters long"}
	case !handleRe.MatchString(handle):
		return &domain.ValidationError{Field: "handle", Value: handle, Reason: "handle may only contain letters, digits, '_' and '-'"}
	}
	return nil
}

// ClassifyFreeText decides whether a plain message looks like a streamer
// handle. It returns the candidate with a leading '@' removed; the candidate
// still has to pass ValidateHandle.
func ClassifyFreeText(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "/") {
		return "", false
	}
	if len(text) > FreeTextMaxLen || strings.ContainsAny(text, " \t\r\n") {
		return "", false
	}
	if !freeTextRe.MatchString(text) {
		return "", false
	}
	return strings.TrimPrefix(text, "@"), true
}
