// Package chat turns raw chat input into plain text that is safe to fan out.
package chat

import (
	"errors"

	"github.com/dkeye/babel/internal/domain"
)

var ErrEmptyMessage = errors.New("empty message")

// MaxMessageRunes bounds a chat line after sanitization.
const MaxMessageRunes = 2000

// Sanitize returns the plain text of raw, truncated to MaxMessageRunes. Only
// an empty raw input is an error; markup that sanitizes to nothing yields an
// empty string.
func Sanitize(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyMessage
	}
	text, err := domain.PlainText(raw)
	if err != nil {
		return "", err
	}
	return truncate(text), nil
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxMessageRunes {
		return s
	}
	return string(r[:MaxMessageRunes])
}
