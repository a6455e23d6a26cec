// Package domain holds the entities shared by every layer and their validation.
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameInvalid = errors.New("username is not valid text")
)

// ParticipantID is the connection identifier assigned by the transport layer.
type ParticipantID string

func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// NewDisplayName reduces a display name to trimmed plain text and validates
// it. A name that is empty after that is replaced by fallback.
func NewDisplayName(raw, fallback string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", ErrUsernameInvalid
	}
	text, err := PlainText(raw)
	if err != nil {
		return "", ErrUsernameInvalid
	}
	name := strings.TrimSpace(stripControl(text))
	if name == "" {
		return fallback, nil
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// Languages is a participant's spoken language and the language it wants to
// hear others in. Codes are ISO 639-1.
type Languages struct {
	Spoken string `json:"spoken"`
	Target string `json:"target"`
}

// Status carries the media flags a participant publishes to its room.
type Status struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// Participant is a read-only snapshot of one connected member.
type Participant struct {
	ID        ParticipantID `json:"id"`
	Name      string        `json:"name"`
	Languages Languages     `json:"languages"`
	Status    Status        `json:"status"`
	Room      RoomID        `json:"room,omitempty"`
}
