package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxRoomIDLen = 64

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
	ErrRoomIDInvalid = errors.New("room id is not valid text")
)

type RoomID string

func NewRoomID(raw string) (RoomID, error) {
	if !utf8.ValidString(raw) {
		return "", ErrRoomIDInvalid
	}
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrRoomIDEmpty
	}
	if utf8.RuneCountInString(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	if strings.ContainsFunc(id, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return "", ErrRoomIDInvalid
	}
	return RoomID(id), nil
}

// RoomInfo is what the REST listing exposes about a live room.
type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"member_count"`
}
